package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/excel"
	"inventory-service/internal/importer"
	"inventory-service/internal/model"
	"inventory-service/pkg/database"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BulkInsertRequest is the payload of POST /api/inventory
type BulkInsertRequest struct {
	Items []model.InventoryItem `json:"items"`
}

// ListInventory handles retrieving the whole catalog, most recently
// updated first
func ListInventory(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var items []model.InventoryItem
	result := database.GetDB().Order("updated_at DESC").Find(&items)
	if result.Error != nil {
		log.Error("Failed to list inventory", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve inventory",
		})
	}

	log.Info("Inventory retrieved", zap.Int("count", len(items)))
	return c.JSON(http.StatusOK, items)
}

// BulkInsertInventory handles the batch insert used by the chunked
// import path. Rows whose internal code already exists are silently
// skipped; the response carries the count of rows actually inserted.
func BulkInsertInventory(c echo.Context) error {
	log := logger.FromContext(c)

	var req BulkInsertRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid bulk insert payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid data"})
	}
	if req.Items == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid data"})
	}

	for i := range req.Items {
		if req.Items[i].NmBrg == "" {
			req.Items[i].NmBrg = "Unknown Item"
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	catalog := importer.NewStoreCatalog(database.GetDB())
	count, err := catalog.BulkInsert(c.Request().Context(), req.Items)
	if err != nil {
		log.Error("Bulk insert failed", zap.Int("rows", len(req.Items)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to import items", err))
	}

	prometheus.RecordInventoryOperation("bulk_insert")
	prometheus.ImportedRowsCounter.Add(float64(count))
	log.Info("Bulk insert completed",
		zap.Int("rows", len(req.Items)),
		zap.Int("inserted", count))
	return c.JSON(http.StatusOK, echo.Map{
		"count":   count,
		"message": "Batch inserted successfully",
	})
}

// ClearInventory irreversibly empties the catalog table
func ClearInventory(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	catalog := importer.NewStoreCatalog(database.GetDB())
	if err := catalog.Clear(c.Request().Context()); err != nil {
		log.Error("Failed to clear inventory", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to clear database", err))
	}

	prometheus.RecordInventoryOperation("clear")
	log.Warn("Inventory cleared")
	return c.JSON(http.StatusOK, echo.Map{"message": "All inventory items cleared"})
}

// UpdateInventory applies a partial field set to one item. Only
// provided fields are written; numeric fields are coerced with a zero
// default when they fail to parse.
func UpdateInventory(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		log.Error("Invalid update payload", zap.String("item_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	updates := map[string]interface{}{}
	for key, col := range map[string]string{
		"kd_brg":    "kd_brg",
		"barcode":   "barcode",
		"nm_brg":    "nm_brg",
		"satuan":    "satuan",
		"golongan":  "golongan",
		"sub_gol":   "sub_gol",
		"kode_supl": "kode_supl",
		"imageUrl":  "image_url",
	} {
		if v, ok := body[key]; ok {
			updates[col] = coerceString(v)
		}
	}
	for key, col := range map[string]string{
		"qty":     "qty",
		"qty_min": "qty_min",
		"qty_max": "qty_max",
	} {
		if v, ok := body[key]; ok {
			updates[col] = coerceInt(v)
		}
	}
	for key, col := range map[string]string{
		"hrg_beli": "hrg_beli",
		"gol1":     "gol1",
	} {
		if v, ok := body[key]; ok {
			updates[col] = coerceFloat(v)
		}
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No updatable fields provided"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	db := database.GetDB()
	result := db.Model(&model.InventoryItem{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		if code, ok := uniqueViolation(result.Error); ok {
			log.Warn("Unique constraint violated on update",
				zap.String("item_id", id),
				zap.String("pg_code", code))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Duplicate value violates unique constraint",
				"code":  code,
			})
		}
		log.Error("Failed to update item", zap.String("item_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, errorBody("Database Error", result.Error))
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Item not found"})
	}

	var item model.InventoryItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		log.Error("Failed to reload updated item", zap.String("item_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Database Error", err))
	}

	prometheus.RecordInventoryOperation("update")
	log.Info("Item updated",
		zap.String("item_id", id),
		zap.Int("fields", len(updates)))
	return c.JSON(http.StatusOK, item)
}

// ListInventoryImages returns the image backup used before a chunked
// import clears the table
func ListInventoryImages(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	catalog := importer.NewStoreCatalog(database.GetDB())
	refs, err := catalog.Images(c.Request().Context())
	if err != nil {
		log.Error("Failed to fetch image backup", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to fetch images", err))
	}

	log.Info("Image backup fetched", zap.Int("count", len(refs)))
	return c.JSON(http.StatusOK, refs)
}

// ImportInventory replaces the catalog from an uploaded xlsx file.
// The importer decides between the single-transaction and chunked
// paths based on the configured threshold.
func ImportInventory(c echo.Context) error {
	log := logger.FromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "spreadsheet file is required"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only .xlsx files are allowed"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open upload", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to read upload", err))
	}
	defer src.Close()

	items, err := excel.ReadItems(src)
	if err != nil {
		log.Error("Failed to parse spreadsheet", zap.String("filename", fileHeader.Filename), zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorBody("Could not process the Excel file", err))
	}

	im := importer.New(appConfig.Import, importer.NewStoreCatalog(database.GetDB()), log)
	count, err := im.Run(c.Request().Context(), items, func(chunk, total int) {
		prometheus.ImportChunksCounter.WithLabelValues("ok").Inc()
	})
	if err != nil {
		prometheus.ImportChunksCounter.WithLabelValues("failed").Inc()
		var chunkErr *importer.ChunkError
		if errors.As(err, &chunkErr) {
			log.Error("Import aborted mid-chunk",
				zap.Int("chunk", chunkErr.Index),
				zap.Int("total", chunkErr.Total),
				zap.Error(chunkErr.Err))
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error":    "Failed to import items",
				"chunk":    chunkErr.Index,
				"chunks":   chunkErr.Total,
				"firstRow": chunkErr.FirstRow,
				"details":  chunkErr.Err.Error(),
			})
		}
		log.Error("Import failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to import items", err))
	}

	prometheus.RecordInventoryOperation("import")
	prometheus.ImportedRowsCounter.Add(float64(count))
	log.Info("Catalog import completed",
		zap.String("filename", fileHeader.Filename),
		zap.Int("rows", len(items)),
		zap.Int("inserted", count))
	return c.JSON(http.StatusOK, echo.Map{
		"count":   count,
		"message": "Import completed",
	})
}

// ExportInventory streams the catalog as an xlsx download
func ExportInventory(c echo.Context) error {
	log := logger.FromContext(c)

	var items []model.InventoryItem
	if err := database.GetDB().Order("updated_at DESC").Find(&items).Error; err != nil {
		log.Error("Failed to load inventory for export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve inventory", err))
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="inventory_data.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)

	if err := excel.WriteItems(c.Response(), items); err != nil {
		log.Error("Failed to write export", zap.Error(err))
		return err
	}

	prometheus.RecordInventoryOperation("export")
	log.Info("Inventory exported", zap.Int("count", len(items)))
	return nil
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.Code, true
	}
	return "", false
}

func errorBody(msg string, err error) echo.Map {
	body := echo.Map{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	return body
}

func coerceString(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	default:
		return nil
	}
}

func coerceFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceInt(v interface{}) int {
	return int(coerceFloat(v))
}
