package importer

import (
	"context"

	"inventory-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreCatalog runs the catalog operations directly against the
// database. It backs the in-process, single-transaction import path.
type StoreCatalog struct {
	db *gorm.DB
}

// NewStoreCatalog wraps a gorm handle
func NewStoreCatalog(db *gorm.DB) *StoreCatalog {
	return &StoreCatalog{db: db}
}

// Images lists the image references of all items that have one
func (s *StoreCatalog) Images(ctx context.Context) ([]ImageRef, error) {
	var refs []ImageRef
	err := s.db.WithContext(ctx).
		Model(&model.InventoryItem{}).
		Select("kd_brg", "barcode", "image_url").
		Where("image_url IS NOT NULL").
		Find(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Clear irreversibly empties the catalog table
func (s *StoreCatalog) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("DELETE FROM inventory_items").Error
}

// BulkInsert inserts items, silently skipping rows whose internal code
// already exists, and returns the number of rows actually inserted
func (s *StoreCatalog) BulkInsert(ctx context.Context, items []model.InventoryItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kd_brg"}},
			DoNothing: true,
		}).
		Create(&items)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ReplaceAll performs backup-clear-insert in one transaction. The
// caller bounds the transaction duration through ctx.
func (s *StoreCatalog) ReplaceAll(ctx context.Context, items []model.InventoryItem) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCatalog := NewStoreCatalog(tx)

		images, err := txCatalog.Images(ctx)
		if err != nil {
			return err
		}
		if err := txCatalog.Clear(ctx); err != nil {
			return err
		}

		RestoreImages(items, images)

		n, err := txCatalog.BulkInsert(ctx, items)
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
