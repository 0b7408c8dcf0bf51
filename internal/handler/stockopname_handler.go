package handler

import (
	"net/http"
	"time"

	"inventory-service/internal/excel"
	"inventory-service/internal/model"
	"inventory-service/pkg/database"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateOpnameRequest is the payload of POST /api/stock-opname. The
// difference is never accepted from the caller; it is recomputed from
// the captured system quantity.
type CreateOpnameRequest struct {
	InventoryID string  `json:"inventoryId" validate:"required"`
	KdBrg       *string `json:"kd_brg"`
	Barcode     *string `json:"barcode"`
	NmBrg       string  `json:"nm_brg" validate:"required"`
	SystemQty   int     `json:"systemQty"`
	PhysicalQty int     `json:"physicalQty"`
	Satuan      *string `json:"satuan"`
	HrgBeli     float64 `json:"hrg_beli"`
	RackNo      string  `json:"rackNo" validate:"required"`
	UserName    string  `json:"userName" validate:"required"`
	Division    *string `json:"division"`
}

// UpdateOpnameRequest carries the corrected physical count
type UpdateOpnameRequest struct {
	PhysicalQty int `json:"physicalQty"`
}

// ListStockOpname returns audit records newest first, optionally
// filtered by rack
func ListStockOpname(c echo.Context) error {
	log := logger.FromContext(c)

	query := database.GetDB().Order("created_at DESC")
	if rack := c.QueryParam("rack"); rack != "" {
		query = query.Where("rack_no = ?", rack)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var records []model.StockOpname
	if err := query.Find(&records).Error; err != nil {
		log.Error("Failed to list stock opname records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve records", err))
	}

	return c.JSON(http.StatusOK, records)
}

// CreateStockOpname records one physical count
func CreateStockOpname(c echo.Context) error {
	log := logger.FromContext(c)

	var req CreateOpnameRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid stock opname payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields", err))
	}

	record := model.StockOpname{
		InventoryID: req.InventoryID,
		KdBrg:       req.KdBrg,
		Barcode:     req.Barcode,
		NmBrg:       req.NmBrg,
		SystemQty:   req.SystemQty,
		PhysicalQty: req.PhysicalQty,
		Difference:  req.PhysicalQty - req.SystemQty,
		Satuan:      req.Satuan,
		HrgBeli:     req.HrgBeli,
		RackNo:      req.RackNo,
		UserName:    req.UserName,
		Division:    req.Division,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&record).Error; err != nil {
		log.Error("Failed to create stock opname record",
			zap.String("inventory_id", req.InventoryID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to save record", err))
	}

	prometheus.RecordOpnameOperation("create")
	prometheus.OpnameDifferenceGauge.WithLabelValues(record.RackNo).Set(float64(record.Difference))
	log.Info("Stock opname recorded",
		zap.String("record_id", record.ID),
		zap.String("rack", record.RackNo),
		zap.Int("difference", record.Difference))
	return c.JSON(http.StatusCreated, record)
}

// UpdateStockOpname corrects the physical count of one record. The
// difference is recomputed against the system quantity captured when
// the record was first made, not the live catalog.
func UpdateStockOpname(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req UpdateOpnameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	db := database.GetDB()
	var record model.StockOpname
	if err := db.First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Record not found"})
		}
		log.Error("Failed to load record", zap.String("record_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Database Error", err))
	}

	record.PhysicalQty = req.PhysicalQty
	record.Difference = req.PhysicalQty - record.SystemQty

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(&record).Updates(map[string]interface{}{
		"physical_qty": record.PhysicalQty,
		"difference":   record.Difference,
	}).Error; err != nil {
		log.Error("Failed to update record", zap.String("record_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to update record", err))
	}

	prometheus.RecordOpnameOperation("update")
	log.Info("Stock opname corrected",
		zap.String("record_id", id),
		zap.Int("physical_qty", record.PhysicalQty),
		zap.Int("difference", record.Difference))
	return c.JSON(http.StatusOK, record)
}

// DeleteStockOpname removes one record
func DeleteStockOpname(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := database.GetDB().Delete(&model.StockOpname{}, "id = ?", id)
	if result.Error != nil {
		log.Error("Failed to delete record", zap.String("record_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to delete record", result.Error))
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Record not found"})
	}

	prometheus.RecordOpnameOperation("delete")
	log.Info("Stock opname record deleted", zap.String("record_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Record deleted"})
}

// ClearStockOpname removes every audit record
func ClearStockOpname(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Exec("DELETE FROM stock_opnames").Error; err != nil {
		log.Error("Failed to clear stock opname records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to clear records", err))
	}

	prometheus.RecordOpnameOperation("clear")
	log.Warn("Stock opname records cleared")
	return c.JSON(http.StatusOK, echo.Map{"message": "All records cleared"})
}

// ExportStockOpname streams audit records as an xlsx download,
// optionally filtered by rack
func ExportStockOpname(c echo.Context) error {
	log := logger.FromContext(c)

	query := database.GetDB().Order("created_at DESC")
	rack := c.QueryParam("rack")
	if rack != "" {
		query = query.Where("rack_no = ?", rack)
	}

	var records []model.StockOpname
	if err := query.Find(&records).Error; err != nil {
		log.Error("Failed to load records for export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve records", err))
	}

	filename := "stock_opname.xlsx"
	if rack != "" {
		filename = "stock_opname_" + rack + ".xlsx"
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().WriteHeader(http.StatusOK)

	if err := excel.WriteOpname(c.Response(), records); err != nil {
		log.Error("Failed to write export", zap.Error(err))
		return err
	}

	prometheus.RecordOpnameOperation("export")
	log.Info("Stock opname exported",
		zap.String("rack", rack),
		zap.Int("count", len(records)))
	return nil
}
