package paypropsync

import (
	"context"
	"strings"
	"sync"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/models"
)

const (
	CategoryRent           = "rent"
	CategoryDeposit        = "deposit"
	CategoryParking        = "parking"
	CategoryServiceCharge  = "service_charge"
	CategoryUtilities      = "utilities"
	CategoryCommission     = "commission"
	CategoryOwner          = "owner"
	CategoryMaintenance    = "maintenance"
	CategoryGeneralExpense = "general_expense"
)

type categoryRule struct {
	Label string
	Name  string
}

// Baselines that classification can rely on even when the mapping
// table is empty or the database is unreachable. Rules are ordered:
// the substring scan walks them first to last, so when several rules
// could claim a label the earlier one wins, every run.
var baselineCategories = map[models.TransactionBucket][]categoryRule{
	models.BucketInvoice: {
		{"rent", CategoryRent},
		{"deposit", CategoryDeposit},
		{"parking", CategoryParking},
		{"service charge", CategoryServiceCharge},
		{"utilities", CategoryUtilities},
	},
	models.BucketFee: {
		{"commission", CategoryCommission},
		{"management fee", CategoryCommission},
		{"admin fee", "admin_fee"},
		{"inventory fee", "inventory_fee"},
	},
	models.BucketPayment: {
		{"owner", CategoryOwner},
		{"contractor", CategoryMaintenance},
		{"deposit", CategoryDeposit},
		{"commission", CategoryCommission},
	},
}

// bucketCache keeps the exact-match index and the rule order side by
// side: lookups stay O(1), substring scans stay deterministic.
type bucketCache struct {
	names map[string]string
	order []string
}

// add registers a rule unless the label is already claimed: the first
// writer wins, so load order decides precedence.
func (b *bucketCache) add(label, name string) {
	if _, ok := b.names[label]; ok {
		return
	}
	b.names[label] = name
	b.order = append(b.order, label)
}

// maintenanceFamilies is an ordered rule list mapping keyword families
// to maintenance sub-categories. Order matters: earlier families win.
var maintenanceFamilies = []struct {
	Keywords []string
	Category string
}{
	{[]string{"plumb", "leak", "drain", "repair"}, "maintenance_plumbing_repair"},
	{[]string{"fire", "smoke", "alarm", "safety"}, "maintenance_fire_safety"},
	{[]string{"fridge", "freezer", "washer", "oven", "white goods", "appliance"}, "maintenance_white_goods"},
	{[]string{"clearance", "rubbish", "waste", "clean"}, "maintenance_clearance"},
	{[]string{"furnish", "furniture", "carpet", "curtain"}, "maintenance_furnishing"},
	{[]string{"electric", "wiring", "socket", "lighting"}, "maintenance_electrical"},
	{[]string{"boiler", "heating", "radiator", "gas"}, "maintenance_heating"},
}

var commissionKeywords = []string{"commission", "management", "fee"}
var maintenanceKeywords = []string{"maintenance", "repair", "contractor", "plumb", "electric", "boiler", "clean"}
var ownerKeywords = []string{"owner", "beneficiary", "landlord"}

// CategoryClassifier canonicalizes raw category labels per bucket. The
// cache is explicit state owned by the classifier: loaded lazily on
// first use, refreshable on demand, never package-global.
type CategoryClassifier struct {
	AgencyId string
	Store    CategoryStore

	mu     sync.RWMutex
	loaded bool
	cache  map[models.TransactionBucket]*bucketCache
}

func NewCategoryClassifier(agencyId string, store CategoryStore) *CategoryClassifier {
	return &CategoryClassifier{AgencyId: agencyId, Store: store}
}

var (
	classifierMu sync.Mutex
	classifiers  = make(map[string]*CategoryClassifier)
)

// classifierForAgency returns the process-wide classifier for an
// agency, so a refresh through the API is seen by subsequent runs.
func classifierForAgency(agencyId string) *CategoryClassifier {
	classifierMu.Lock()
	defer classifierMu.Unlock()
	classifier, ok := classifiers[agencyId]
	if !ok {
		classifier = NewCategoryClassifier(agencyId, models.NewGormStores())
		classifiers[agencyId] = classifier
	}
	return classifier
}

// ensureLoaded builds the per-bucket caches from the baselines plus
// any database overrides. A store failure leaves the baselines in
// place rather than failing classification.
func (c *CategoryClassifier) ensureLoaded(ctx context.Context) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}

	cache := make(map[models.TransactionBucket]*bucketCache, len(baselineCategories))
	bucketEntries := func(bucket models.TransactionBucket) *bucketCache {
		entries, ok := cache[bucket]
		if !ok {
			entries = &bucketCache{names: make(map[string]string)}
			cache[bucket] = entries
		}
		return entries
	}

	// Agency overrides load first so they beat the baseline rules on
	// both exact and substring matches.
	if c.Store != nil {
		rows, err := c.Store.ActivePaymentCategories(ctx, c.AgencyId)
		if err != nil {
			config.LogError(config.GetLogger(), "paypropsync", "ensureLoaded",
				"loading payment categories, continuing on baselines", c.AgencyId, err)
		} else {
			for _, row := range rows {
				bucketEntries(row.Bucket).add(normalizeLabel(row.ExternalLabel), row.InternalName)
			}
		}
	}
	for bucket, rules := range baselineCategories {
		for _, rule := range rules {
			bucketEntries(bucket).add(rule.Label, rule.Name)
		}
	}

	c.cache = cache
	c.loaded = true
}

// Refresh clears the caches so the next classification reloads the
// mapping table. Lets a taxonomy change land without a restart.
func (c *CategoryClassifier) Refresh() {
	c.mu.Lock()
	c.loaded = false
	c.cache = nil
	c.mu.Unlock()
}

// Stats returns per-bucket cache entry counts, for the status endpoint.
func (c *CategoryClassifier) Stats(ctx context.Context) map[string]int {
	c.ensureLoaded(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make(map[string]int, len(c.cache))
	for bucket, entries := range c.cache {
		stats[string(bucket)] = len(entries.names)
	}
	return stats
}

// Classify maps a raw label to a canonical category for the bucket.
// Never fails: unknown and empty labels get the bucket's default.
func (c *CategoryClassifier) Classify(ctx context.Context, bucket models.TransactionBucket, rawLabel string) string {
	c.ensureLoaded(ctx)
	label := normalizeLabel(rawLabel)

	switch bucket {
	case models.BucketInvoice:
		return c.classifyDirect(bucket, label, CategoryRent)
	case models.BucketFee:
		return c.classifyDirect(bucket, label, CategoryCommission)
	default:
		return c.classifyExpense(label)
	}
}

func (c *CategoryClassifier) classifyDirect(bucket models.TransactionBucket, label, fallback string) string {
	if label == "" {
		return fallback
	}
	if name, ok := c.cacheMatch(bucket, label); ok {
		return name
	}
	return fallback
}

func (c *CategoryClassifier) classifyExpense(label string) string {
	if label == "" {
		return CategoryGeneralExpense
	}
	if containsAny(label, commissionKeywords) {
		return CategoryCommission
	}
	if containsAny(label, maintenanceKeywords) {
		return classifyMaintenance(label)
	}
	if containsAny(label, ownerKeywords) {
		return CategoryOwner
	}
	if name, ok := c.cacheMatch(models.BucketPayment, label); ok {
		return name
	}
	return CategoryGeneralExpense
}

// classifyMaintenance picks the keyword family for a maintenance
// label, falling back to the generic maintenance category.
func classifyMaintenance(label string) string {
	if family, ok := maintenanceFamilyMatch(label); ok {
		return family
	}
	return CategoryMaintenance
}

func maintenanceFamilyMatch(label string) (string, bool) {
	for _, family := range maintenanceFamilies {
		if containsAny(label, family.Keywords) {
			return family.Category, true
		}
	}
	return "", false
}

// cacheMatch does a bidirectional substring match against the bucket
// cache: raw labels arrive both abbreviated ("rent") and
// over-specified ("monthly rent - flat 2").
func (c *CategoryClassifier) cacheMatch(bucket models.TransactionBucket, label string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := c.cache[bucket]
	if entries == nil {
		return "", false
	}
	if exact, ok := entries.names[label]; ok {
		return exact, true
	}
	for _, known := range entries.order {
		if strings.Contains(label, known) || strings.Contains(known, label) {
			return entries.names[known], true
		}
	}
	return "", false
}

// bucketForType groups a raw transaction-type string into the bucket
// the classifier caches by. Unknown types land in the expense bucket.
func bucketForType(transactionType string) models.TransactionBucket {
	switch normalizeLabel(transactionType) {
	case "invoice", "deposit", "credit_note", "debit_note":
		return models.BucketInvoice
	case "fee", "commission", "commission_payment":
		return models.BucketFee
	default:
		return models.BucketPayment
	}
}

func normalizeLabel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func containsAny(label string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(label, keyword) {
			return true
		}
	}
	return false
}
