package paypropsync

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

// ReportFetcher is the slice of the external API the import worker
// consumes. Satisfied by paypropClient in production and by canned
// fakes in tests.
type ReportFetcher interface {
	FetchProperties(ctx context.Context) ([]rawProperty, error)
	FetchTenants(ctx context.Context) ([]rawTenant, error)
	FetchBeneficiaries(ctx context.Context) ([]rawTenant, error)
	FetchInvoiceInstructions(ctx context.Context) ([]rawInvoiceInstruction, error)
	FetchTransactionRows(ctx context.Context, from, to time.Time) ([]RawTransactionRow, error)
	FetchPaymentRows(ctx context.Context, from, to time.Time) ([]PaymentRow, error)
}

func dateRangeParams(from, to time.Time) url.Values {
	params := url.Values{}
	params.Set("from_date", from.Format("2006-01-02"))
	params.Set("to_date", to.Format("2006-01-02"))
	return params
}

func (c *paypropClient) FetchProperties(ctx context.Context) ([]rawProperty, error) {
	var rows []rawProperty
	err := c.fetchAllPages(ctx, "/export/"+string(models.EntityKindProperty), nil, func(raw json.RawMessage) error {
		var row rawProperty
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func (c *paypropClient) fetchCustomers(ctx context.Context, kind models.EntityKind) ([]rawTenant, error) {
	var rows []rawTenant
	err := c.fetchAllPages(ctx, "/export/"+string(kind), nil, func(raw json.RawMessage) error {
		var row rawTenant
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func (c *paypropClient) FetchTenants(ctx context.Context) ([]rawTenant, error) {
	return c.fetchCustomers(ctx, models.EntityKindTenant)
}

func (c *paypropClient) FetchBeneficiaries(ctx context.Context) ([]rawTenant, error) {
	return c.fetchCustomers(ctx, models.EntityKindBeneficiary)
}

func (c *paypropClient) FetchInvoiceInstructions(ctx context.Context) ([]rawInvoiceInstruction, error) {
	var rows []rawInvoiceInstruction
	err := c.fetchAllPages(ctx, "/export/invoices", nil, func(raw json.RawMessage) error {
		var row rawInvoiceInstruction
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// FetchTransactionRows pulls the invoice/credit/debit actuals report
// for a date window.
func (c *paypropClient) FetchTransactionRows(ctx context.Context, from, to time.Time) ([]RawTransactionRow, error) {
	var rows []RawTransactionRow
	err := c.fetchAllPages(ctx, "/report/icdn", dateRangeParams(from, to), func(raw json.RawMessage) error {
		var row RawTransactionRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// FetchPaymentRows pulls the all-payments report, filtered server-side
// to the reconciliation window.
func (c *paypropClient) FetchPaymentRows(ctx context.Context, from, to time.Time) ([]PaymentRow, error) {
	params := dateRangeParams(from, to)
	params.Set("filter_by", "reconciliation_date")
	var rows []PaymentRow
	err := c.fetchAllPages(ctx, "/report/all-payments", params, func(raw json.RawMessage) error {
		var row PaymentRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}
