// Package importer replaces the whole catalog from a parsed
// spreadsheet while preserving images already attached to items.
//
// Consistency contract: imports smaller than SingleTxThreshold run as
// one transaction (all-or-nothing, bounded by TxTimeout). Imports at
// or above the threshold are chunked: every chunk of ChunkSize rows is
// its own commit, so a failure at chunk k leaves chunks 1..k-1 in
// place, aborts the rest and reports the failing chunk. Callers must
// treat a ChunkError as a partially replaced catalog.
package importer

import (
	"context"
	"errors"
	"fmt"

	"inventory-service/internal/model"
	"inventory-service/pkg/config"

	"go.uber.org/zap"
)

// ImageRef is the pre-clear snapshot of one item's image, keyed by
// internal code and barcode
type ImageRef struct {
	KdBrg    *string `json:"kd_brg"`
	Barcode  *string `json:"barcode"`
	ImageURL *string `json:"imageUrl"`
}

// Catalog is the store surface the orchestrator drives. BulkInsert
// skips duplicate internal codes and reports how many rows landed.
// ReplaceAll performs the whole backup-clear-insert sequence in one
// transaction.
type Catalog interface {
	Images(ctx context.Context) ([]ImageRef, error)
	Clear(ctx context.Context) error
	BulkInsert(ctx context.Context, items []model.InventoryItem) (int, error)
	ReplaceAll(ctx context.Context, items []model.InventoryItem) (int, error)
}

// Progress reports chunk completion; chunk 0 is the backup-and-clear
// step, chunks 1..total are insert requests.
type Progress func(chunk, total int)

// ChunkError reports the chunk that failed, with the chunk's first row
// to help locate the bad data in the source sheet
type ChunkError struct {
	Index    int
	Total    int
	FirstRow model.InventoryItem
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("import chunk %d/%d failed (first row kd_brg=%q): %v",
		e.Index, e.Total, derefOr(e.FirstRow.KdBrg, ""), e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Importer orchestrates catalog replacement
type Importer struct {
	cfg     config.ImportConfig
	catalog Catalog
	log     *zap.Logger
}

// New returns an Importer over the given catalog
func New(cfg config.ImportConfig, catalog Catalog, log *zap.Logger) *Importer {
	return &Importer{cfg: cfg, catalog: catalog, log: log}
}

// Run replaces the catalog with items and returns the number of rows
// inserted. See the package comment for the consistency contract.
func (im *Importer) Run(ctx context.Context, items []model.InventoryItem, progress Progress) (int, error) {
	if progress == nil {
		progress = func(int, int) {}
	}

	if len(items) < im.cfg.SingleTxThreshold {
		return im.runSingleTx(ctx, items, progress)
	}
	return im.runChunked(ctx, items, progress)
}

func (im *Importer) runSingleTx(ctx context.Context, items []model.InventoryItem, progress Progress) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, im.cfg.TxTimeout)
	defer cancel()

	progress(0, 1)
	count, err := im.catalog.ReplaceAll(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}
	progress(1, 1)

	im.log.Info("Catalog replaced in a single transaction",
		zap.Int("rows", len(items)),
		zap.Int("inserted", count))
	return count, nil
}

func (im *Importer) runChunked(ctx context.Context, items []model.InventoryItem, progress Progress) (int, error) {
	chunkSize := im.cfg.ChunkSize
	if chunkSize <= 0 {
		return 0, errors.New("chunk size must be positive")
	}
	total := (len(items) + chunkSize - 1) / chunkSize

	// Step 0: snapshot images, then clear. After the clear succeeds the
	// old catalog is gone; a later chunk failure cannot roll it back.
	progress(0, total)
	images, err := im.catalog.Images(ctx)
	if err != nil {
		return 0, fmt.Errorf("backup images: %w", err)
	}
	if err := im.catalog.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}

	RestoreImages(items, images)

	inserted := 0
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		n, err := im.catalog.BulkInsert(ctx, chunk)
		if err != nil {
			im.log.Error("Import chunk failed",
				zap.Int("chunk", i+1),
				zap.Int("total", total),
				zap.Error(err))
			return inserted, &ChunkError{Index: i + 1, Total: total, FirstRow: chunk[0], Err: err}
		}
		inserted += n
		progress(i+1, total)
	}

	im.log.Info("Catalog replaced in chunks",
		zap.Int("rows", len(items)),
		zap.Int("inserted", inserted),
		zap.Int("chunks", total))
	return inserted, nil
}

// RestoreImages copies images from the pre-clear snapshot onto the new
// rows. A row keeps its own image when it brought one; otherwise the
// snapshot is consulted by internal code first, barcode second, first
// match wins. Unmatched rows import with no image.
func RestoreImages(items []model.InventoryItem, images []ImageRef) {
	byKd := make(map[string]*string)
	byBarcode := make(map[string]*string)
	for _, ref := range images {
		if ref.ImageURL == nil {
			continue
		}
		if ref.KdBrg != nil && *ref.KdBrg != "" {
			if _, ok := byKd[*ref.KdBrg]; !ok {
				byKd[*ref.KdBrg] = ref.ImageURL
			}
		}
		if ref.Barcode != nil && *ref.Barcode != "" {
			if _, ok := byBarcode[*ref.Barcode]; !ok {
				byBarcode[*ref.Barcode] = ref.ImageURL
			}
		}
	}

	for i := range items {
		if items[i].ImageURL != nil && *items[i].ImageURL != "" {
			continue
		}
		if items[i].KdBrg != nil {
			if url, ok := byKd[*items[i].KdBrg]; ok {
				items[i].ImageURL = url
				continue
			}
		}
		if items[i].Barcode != nil {
			if url, ok := byBarcode[*items[i].Barcode]; ok {
				items[i].ImageURL = url
			}
		}
	}
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
