package paypropsync

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

var oneHundred = decimal.NewFromInt(100)

// CommissionCalculator derives the agency's commission row from an
// imported rent transaction and the lease it was matched to. Keyed on
// the source transaction's reference, so re-processing a rent row
// never produces a second commission row.
type CommissionCalculator struct {
	AgencyId     string
	Transactions TransactionStore
}

// Process writes the commission row for one rent transaction. Returns
// false without error when no commission applies: zero rate, deposit
// rows (held client money, not agency income) and negative amounts.
func (c *CommissionCalculator) Process(ctx context.Context, txn *models.FinancialTransaction, lease *models.Lease) (bool, error) {
	if lease == nil || lease.CommissionRate.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}
	if txn.Category == CategoryDeposit {
		return false, nil
	}
	if txn.Amount.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}

	commission := txn.Amount.Mul(lease.CommissionRate).Div(oneHundred).Round(2)
	if commission.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}

	leaseId := lease.ID
	row := models.FinancialTransaction{
		AgencyId:        c.AgencyId,
		SourceReference: "COMM-" + txn.SourceReference,
		DataSource:      models.DataSourceCommissionPayment,
		TransactionType: "commission_payment",
		Category:        CategoryCommission,
		Amount:          commission,
		TransactionDate: txn.TransactionDate,
		Description: fmt.Sprintf("Commission %s%% on %s",
			lease.CommissionRate.StringFixed(2), txn.SourceReference),
		PropertyId:        txn.PropertyId,
		LeaseId:           &leaseId,
		PropertyPaypropId: txn.PropertyPaypropId,
		TenantPaypropId:   txn.TenantPaypropId,
		LeasePaypropId:    txn.LeasePaypropId,
	}
	return c.Transactions.InsertTransactionIfAbsent(ctx, &row)
}
