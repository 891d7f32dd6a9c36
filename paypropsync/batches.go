package paypropsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/models"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

// GroupBatches folds reconciled payment rows into settlement batches
// keyed by the platform's batch id. Rows without a batch id or not yet
// reconciled are dropped; they will appear in a later run. Batches and
// their allocations come back date-ordered so repeated runs see the
// same sequence.
func GroupBatches(rows []PaymentRow) []SettlementBatch {
	byId := make(map[string]*SettlementBatch)
	for _, row := range rows {
		if row.PaymentBatchId == "" || row.ReconciledDate == "" {
			continue
		}
		amount, err := utils.ParseDecimal(row.Amount.String())
		if err != nil {
			continue
		}
		transferDate, err := utils.ParseDate(row.ReconciledDate)
		if err != nil {
			continue
		}
		dueDate, err := utils.ParseDate(row.PaymentDate)
		if err != nil {
			dueDate = transferDate
		}

		batch, ok := byId[row.PaymentBatchId]
		if !ok {
			batch = &SettlementBatch{
				ID:            row.PaymentBatchId,
				TransferDate:  transferDate,
				EarliestCover: dueDate,
				LatestCover:   dueDate,
			}
			byId[row.PaymentBatchId] = batch
		}
		if dueDate.Before(batch.EarliestCover) {
			batch.EarliestCover = dueDate
		}
		if dueDate.After(batch.LatestCover) {
			batch.LatestCover = dueDate
		}
		batch.Allocations = append(batch.Allocations, SettlementAllocation{
			ID:            row.ID,
			BeneficiaryId: row.BeneficiaryId,
			PropertyId:    row.PropertyId,
			TenantId:      row.TenantId,
			CategoryName:  row.CategoryName,
			Amount:        amount,
			DueDate:       dueDate,
			Description:   row.Description,
		})
	}

	batches := make([]SettlementBatch, 0, len(byId))
	for _, batch := range byId {
		sort.Slice(batch.Allocations, func(i, j int) bool {
			a, b := batch.Allocations[i], batch.Allocations[j]
			if !a.DueDate.Equal(b.DueDate) {
				return a.DueDate.Before(b.DueDate)
			}
			return a.ID < b.ID
		})
		batches = append(batches, *batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].TransferDate.Equal(batches[j].TransferDate) {
			return batches[i].TransferDate.Before(batches[j].TransferDate)
		}
		return batches[i].ID < batches[j].ID
	})
	return batches
}

// SettlementImporter decomposes settlement batches into ledger rows:
// one negative transaction per allocation plus one negative transfer
// transaction per batch. Both paths are idempotent on their own
// source-reference prefix, so a crashed run resumes cleanly.
type SettlementImporter struct {
	AgencyId     string
	Transactions TransactionStore
	Entities     EntityStore
	Matcher      *LeaseMatcher
	Classifier   *CategoryClassifier
}

// ImportBatch writes the ledger rows for one batch. Allocation
// failures are collected into the result, never raised: one bad
// allocation must not block its siblings or the transfer row.
func (s *SettlementImporter) ImportBatch(ctx context.Context, batch SettlementBatch) BatchImportResult {
	result := BatchImportResult{BatchId: batch.ID}

	for _, alloc := range batch.Allocations {
		inserted, err := s.importAllocation(ctx, batch, alloc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("allocation %s: %v", alloc.ID, err))
			config.LogError(config.GetLogger(), "paypropsync", "ImportBatch",
				"importing settlement allocation", alloc.ID, err)
			continue
		}
		if inserted {
			result.AllocationsInserted++
		} else {
			result.AllocationsSkipped++
		}
	}

	inserted, err := s.importTransfer(ctx, batch)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("batch transfer %s: %v", batch.ID, err))
		config.LogError(config.GetLogger(), "paypropsync", "ImportBatch",
			"importing settlement transfer", batch.ID, err)
	}
	result.TransferInserted = inserted

	return result
}

func (s *SettlementImporter) importAllocation(ctx context.Context, batch SettlementBatch, alloc SettlementAllocation) (bool, error) {
	txn := models.FinancialTransaction{
		AgencyId:        s.AgencyId,
		SourceReference: "ALLOC-" + alloc.ID,
		DataSource:      models.DataSourceBatchAllocation,
		TransactionType: "settlement_allocation",
		Category:        s.Classifier.Classify(ctx, models.BucketPayment, alloc.CategoryName),
		Amount:          alloc.Amount.Neg(),
		TransactionDate: alloc.DueDate,
		Description:     allocationDescription(alloc),
		BatchPaypropId:  &batch.ID,
	}

	if alloc.PropertyId != "" {
		propertyRef := alloc.PropertyId
		txn.PropertyPaypropId = &propertyRef
		property, err := s.Entities.PropertyByPaypropId(ctx, s.AgencyId, alloc.PropertyId)
		if err != nil {
			return false, err
		}
		if property != nil {
			txn.PropertyId = &property.ID

			match, err := s.Matcher.Match(ctx, s.AgencyId, property.ID, "", alloc.TenantId, alloc.DueDate)
			if err != nil {
				return false, err
			}
			if match.Matched {
				leaseId := match.LeaseId
				txn.LeaseId = &leaseId
			}
		}
	}
	if alloc.TenantId != "" {
		tenantRef := alloc.TenantId
		txn.TenantPaypropId = &tenantRef
	}
	if alloc.BeneficiaryId != "" {
		beneficiaryRef := alloc.BeneficiaryId
		txn.BeneficiaryPaypropId = &beneficiaryRef
		beneficiary, err := s.Entities.CustomerByPaypropId(ctx, s.AgencyId, alloc.BeneficiaryId)
		if err != nil {
			return false, err
		}
		if beneficiary != nil {
			txn.CustomerId = &beneficiary.ID
		}
	}

	return s.Transactions.InsertTransactionIfAbsent(ctx, &txn)
}

func (s *SettlementImporter) importTransfer(ctx context.Context, batch SettlementBatch) (bool, error) {
	total := batch.Total()
	if total.Equal(decimal.Zero) {
		return false, nil
	}

	txn := models.FinancialTransaction{
		AgencyId:        s.AgencyId,
		SourceReference: "BATCH-" + batch.ID,
		DataSource:      models.DataSourceBatchTransfer,
		TransactionType: "settlement_transfer",
		Category:        CategoryOwner,
		Amount:          total.Neg(),
		TransactionDate: batch.TransferDate,
		Description: fmt.Sprintf("Settlement transfer %s covering %d allocations %s to %s",
			batch.ID, len(batch.Allocations),
			batch.EarliestCover.Format("2006-01-02"), batch.LatestCover.Format("2006-01-02")),
		BatchPaypropId: &batch.ID,
	}

	if beneficiaryId := singleBeneficiary(batch); beneficiaryId != "" {
		beneficiaryRef := beneficiaryId
		txn.BeneficiaryPaypropId = &beneficiaryRef
		beneficiary, err := s.Entities.CustomerByPaypropId(ctx, s.AgencyId, beneficiaryId)
		if err != nil {
			return false, err
		}
		if beneficiary != nil {
			txn.CustomerId = &beneficiary.ID
		}
	}

	return s.Transactions.InsertTransactionIfAbsent(ctx, &txn)
}

// singleBeneficiary returns the batch's beneficiary id when every
// allocation agrees on one, otherwise empty.
func singleBeneficiary(batch SettlementBatch) string {
	id := ""
	for _, alloc := range batch.Allocations {
		if alloc.BeneficiaryId == "" {
			continue
		}
		if id == "" {
			id = alloc.BeneficiaryId
			continue
		}
		if id != alloc.BeneficiaryId {
			return ""
		}
	}
	return id
}

func allocationDescription(alloc SettlementAllocation) string {
	if alloc.Description != "" {
		return alloc.Description
	}
	return fmt.Sprintf("Settlement allocation due %s", alloc.DueDate.Format("2006-01-02"))
}
