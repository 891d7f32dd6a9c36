package paypropsync

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

func rentTxn(sourceRef, amount string) *models.FinancialTransaction {
	return &models.FinancialTransaction{
		AgencyId:        "ag1",
		SourceReference: sourceRef,
		DataSource:      models.DataSourceInvoiceActual,
		Category:        CategoryRent,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date("2024-03-01"),
	}
}

func leaseWithRate(rate string) *models.Lease {
	return &models.Lease{ID: 10, AgencyId: "ag1", CommissionRate: decimal.RequireFromString(rate)}
}

func TestCommissionRoundsHalfUp(t *testing.T) {
	stores := newFakeStores()
	calc := CommissionCalculator{AgencyId: "ag1", Transactions: stores}

	// 10.5% of 995 = 104.475, rounds to 104.48.
	inserted, err := calc.Process(context.Background(), rentTxn("ICDN-1", "995"), leaseWithRate("10.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("commission row not inserted")
	}
	row := stores.transactions["COMM-ICDN-1"]
	if row == nil {
		t.Fatal("missing commission row")
	}
	if !row.Amount.Equal(decimal.RequireFromString("104.48")) {
		t.Errorf("amount %s, want 104.48", row.Amount)
	}
	if row.Category != CategoryCommission || row.DataSource != models.DataSourceCommissionPayment {
		t.Errorf("wrong classification: %+v", row)
	}
	if row.LeaseId == nil || *row.LeaseId != 10 {
		t.Errorf("commission not linked to lease: %+v", row)
	}
}

func TestCommissionIsIdempotent(t *testing.T) {
	stores := newFakeStores()
	calc := CommissionCalculator{AgencyId: "ag1", Transactions: stores}
	txn := rentTxn("ICDN-1", "1000")
	lease := leaseWithRate("10")

	if _, err := calc.Process(context.Background(), txn, lease); err != nil {
		t.Fatal(err)
	}
	inserted, err := calc.Process(context.Background(), txn, lease)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("second pass must not insert")
	}
	if len(stores.transactions) != 1 {
		t.Fatalf("expected one row, got %d", len(stores.transactions))
	}
}

func TestCommissionSkipsNonApplicableRows(t *testing.T) {
	stores := newFakeStores()
	calc := CommissionCalculator{AgencyId: "ag1", Transactions: stores}
	ctx := context.Background()

	cases := []struct {
		name  string
		txn   *models.FinancialTransaction
		lease *models.Lease
	}{
		{"nil lease", rentTxn("R1", "1000"), nil},
		{"zero rate", rentTxn("R2", "1000"), leaseWithRate("0")},
		{"deposit row", func() *models.FinancialTransaction {
			txn := rentTxn("R3", "1000")
			txn.Category = CategoryDeposit
			return txn
		}(), leaseWithRate("10")},
		{"negative amount", rentTxn("R4", "-1000"), leaseWithRate("10")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inserted, err := calc.Process(ctx, tc.txn, tc.lease)
			if err != nil {
				t.Fatal(err)
			}
			if inserted {
				t.Fatal("commission must not apply")
			}
		})
	}
	if len(stores.transactions) != 0 {
		t.Fatalf("expected no rows, got %d", len(stores.transactions))
	}
}
