package paypropsync

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/oakcrm/lettings_backend/models"
)

func TestClassifyInvoiceBucket(t *testing.T) {
	classifier := NewCategoryClassifier("ag1", newFakeStores())
	ctx := context.Background()

	cases := []struct {
		raw  string
		want string
	}{
		{"Rent", CategoryRent},
		{"Monthly Rent - Flat 2", CategoryRent},
		{"Deposit", CategoryDeposit},
		{"Parking", CategoryParking},
		{"Service Charge", CategoryServiceCharge},
		{"", CategoryRent},
		{"zzz-unknown", CategoryRent},
	}
	for _, tc := range cases {
		if got := classifier.Classify(ctx, models.BucketInvoice, tc.raw); got != tc.want {
			t.Errorf("invoice %q: got %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestClassifyFeeBucketDefaultsToCommission(t *testing.T) {
	classifier := NewCategoryClassifier("ag1", newFakeStores())
	ctx := context.Background()

	if got := classifier.Classify(ctx, models.BucketFee, "Management Fee"); got != CategoryCommission {
		t.Errorf("got %q, want commission", got)
	}
	if got := classifier.Classify(ctx, models.BucketFee, "something else entirely"); got != CategoryCommission {
		t.Errorf("unknown fee label: got %q, want commission", got)
	}
}

func TestClassifyExpenseKeywordOrder(t *testing.T) {
	classifier := NewCategoryClassifier("ag1", newFakeStores())
	ctx := context.Background()

	cases := []struct {
		raw  string
		want string
	}{
		{"Letting commission March", CategoryCommission},
		{"Boiler repair - flat 3", "maintenance_plumbing_repair"},
		{"Boiler service annual", "maintenance_heating"},
		{"Maintenance - smoke alarm", "maintenance_fire_safety"},
		{"Contractor - washer replacement", "maintenance_white_goods"},
		{"End of tenancy clean", "maintenance_clearance"},
		{"Maintenance carpet fitting", "maintenance_furnishing"},
		{"Electrician rewiring sockets", "maintenance_electrical"},
		{"Owner payment", CategoryOwner},
		{"Landlord statement", CategoryOwner},
		// The maintenance sub-classifier only runs on a maintenance
		// keyword hit, so owner labels with family words stay owner.
		{"Landlord gas certificate", CategoryOwner},
		{"", CategoryGeneralExpense},
		{"utterly unknown thing", CategoryGeneralExpense},
	}
	for _, tc := range cases {
		if got := classifier.Classify(ctx, models.BucketPayment, tc.raw); got != tc.want {
			t.Errorf("expense %q: got %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestClassifyUsesDatabaseOverrides(t *testing.T) {
	stores := newFakeStores()
	stores.categories = []models.PaymentCategory{
		{AgencyId: "ag1", Bucket: models.BucketInvoice, ExternalLabel: "ground rent", InternalName: "ground_rent", IsActive: true},
	}
	classifier := NewCategoryClassifier("ag1", stores)

	if got := classifier.Classify(context.Background(), models.BucketInvoice, "Ground Rent Q1"); got != "ground_rent" {
		t.Errorf("got %q, want ground_rent", got)
	}
}

// A label that several cache entries could claim must classify the
// same way on every reload: rule order decides, not map iteration.
func TestClassifyAmbiguousLabelIsStable(t *testing.T) {
	stores := newFakeStores()
	stores.categories = []models.PaymentCategory{
		{AgencyId: "ag1", Bucket: models.BucketInvoice, ExternalLabel: "ground rent", InternalName: "ground_rent", IsActive: true},
	}
	classifier := NewCategoryClassifier("ag1", stores)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		// "parking deposit" matches both the deposit and parking
		// baselines; the earlier rule wins.
		if got := classifier.Classify(ctx, models.BucketInvoice, "parking deposit"); got != CategoryDeposit {
			t.Fatalf("iteration %d: got %q, want %q", i, got, CategoryDeposit)
		}
		// "ground rent q1" matches the override and the rent
		// baseline; overrides load first.
		if got := classifier.Classify(ctx, models.BucketInvoice, "Ground Rent Q1"); got != "ground_rent" {
			t.Fatalf("iteration %d: got %q, want ground_rent", i, got)
		}
		classifier.Refresh()
	}
}

func TestClassifySurvivesStoreFailure(t *testing.T) {
	stores := newFakeStores()
	stores.categoriesErr = errors.New("connection refused")
	classifier := NewCategoryClassifier("ag1", stores)

	// Baselines must still classify when the mapping table is down.
	if got := classifier.Classify(context.Background(), models.BucketInvoice, "deposit"); got != CategoryDeposit {
		t.Errorf("got %q, want deposit", got)
	}
}

func TestRefreshReloadsOverrides(t *testing.T) {
	stores := newFakeStores()
	classifier := NewCategoryClassifier("ag1", stores)
	ctx := context.Background()

	if got := classifier.Classify(ctx, models.BucketInvoice, "ground rent"); got != CategoryRent {
		t.Fatalf("before override: got %q, want rent default", got)
	}

	stores.categories = []models.PaymentCategory{
		{AgencyId: "ag1", Bucket: models.BucketInvoice, ExternalLabel: "ground rent", InternalName: "ground_rent", IsActive: true},
	}
	classifier.Refresh()

	if got := classifier.Classify(ctx, models.BucketInvoice, "ground rent"); got != "ground_rent" {
		t.Fatalf("after refresh: got %q, want ground_rent", got)
	}
}

func TestStatsCountsBuckets(t *testing.T) {
	classifier := NewCategoryClassifier("ag1", newFakeStores())
	stats := classifier.Stats(context.Background())
	for _, bucket := range []models.TransactionBucket{models.BucketInvoice, models.BucketFee, models.BucketPayment} {
		if stats[string(bucket)] == 0 {
			t.Errorf("bucket %s has no baseline entries", bucket)
		}
	}
}

func TestBucketForType(t *testing.T) {
	cases := map[string]models.TransactionBucket{
		"invoice":     models.BucketInvoice,
		"deposit":     models.BucketInvoice,
		"credit_note": models.BucketInvoice,
		"fee":         models.BucketFee,
		"commission":  models.BucketFee,
		"payment":     models.BucketPayment,
		"":            models.BucketPayment,
		"weird":       models.BucketPayment,
	}
	for raw, want := range cases {
		if got := bucketForType(raw); got != want {
			t.Errorf("%q: got %s, want %s", raw, got, want)
		}
	}
}
