package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/domain/shared"
	"github.com/erp/clinicsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JournalSortFields contains allowed sort fields for reconciliation records
var JournalSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"processed_at":    true,
	"status":          true,
	"correlation_key": true,
	"duration_ms":     true,
}

// GormJournalRepository implements reconciliation.JournalRepository using GORM
type GormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository creates a new GormJournalRepository
func NewGormJournalRepository(db *gorm.DB) *GormJournalRepository {
	return &GormJournalRepository{db: db}
}

// Save inserts the record or, when its id exists, overwrites it. Replays
// update the original record in place.
func (r *GormJournalRepository) Save(ctx context.Context, record *reconciliation.ReconciliationRecord) error {
	model := models.ReconciliationRecordModelFromDomain(record)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save reconciliation record: %w", err)
	}
	return nil
}

// FindByID finds a record by its id
func (r *GormJournalRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationRecord, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByDeliveryID finds the record of a delivery
func (r *GormJournalRepository) FindByDeliveryID(ctx context.Context, deliveryID string) (*reconciliation.ReconciliationRecord, error) {
	return r.findOne(ctx, "delivery_id = ?", deliveryID)
}

func (r *GormJournalRepository) findOne(ctx context.Context, query string, arg any) (*reconciliation.ReconciliationRecord, error) {
	var model models.ReconciliationRecordModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of records matching filter and the total match count
func (r *GormJournalRepository) FindAll(ctx context.Context, filter reconciliation.JournalFilter) ([]reconciliation.ReconciliationRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReconciliationRecordModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", string(filter.EventType))
	}
	if filter.CorrelationKey != "" {
		query = query.Where("correlation_key = ?", filter.CorrelationKey)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []reconciliation.ReconciliationRecord{}, 0, nil
	}

	orderBy := ValidateSortField(filter.OrderBy, JournalSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.ReconciliationRecordModel
	err := query.
		Order(orderBy + " " + orderDir).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]reconciliation.ReconciliationRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, total, nil
}

// PurgeBefore deletes records processed before cutoff
func (r *GormJournalRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ReconciliationRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge reconciliation records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ reconciliation.JournalRepository = (*GormJournalRepository)(nil)
