package handler

import (
	"net/http"
	"time"

	"inventory-service/internal/model"
	"inventory-service/pkg/database"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateActivityRequest is the payload of POST /api/activities
type CreateActivityRequest struct {
	Type    string `json:"type" validate:"required"`
	User    string `json:"user"`
	Rack    string `json:"rack"`
	Message string `json:"message" validate:"required"`
}

// ListActivities returns the newest activity entries, capped at the
// configured read limit
func ListActivities(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var activities []model.Activity
	err := database.GetDB().
		Order("created_at DESC").
		Limit(appConfig.Activity.ReadLimit).
		Find(&activities).Error
	if err != nil {
		log.Error("Failed to list activities", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve activities", err))
	}

	return c.JSON(http.StatusOK, activities)
}

// CreateActivity appends one activity entry and prunes the log down to
// the configured keep limit
func CreateActivity(c echo.Context) error {
	log := logger.FromContext(c)

	var req CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields", err))
	}

	activity := model.Activity{
		Type:    req.Type,
		User:    req.User,
		Rack:    req.Rack,
		Message: req.Message,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	db := database.GetDB()
	if err := db.Create(&activity).Error; err != nil {
		log.Error("Failed to create activity", zap.String("type", req.Type), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to save activity", err))
	}

	// Keep only the newest entries; pruning failure does not fail the
	// append
	err := db.Exec(
		"DELETE FROM activities WHERE id NOT IN (SELECT id FROM activities ORDER BY created_at DESC LIMIT ?)",
		appConfig.Activity.KeepLimit,
	).Error
	if err != nil {
		log.Warn("Failed to prune activity log", zap.Error(err))
	}

	log.Info("Activity recorded",
		zap.String("activity_id", activity.ID),
		zap.String("type", activity.Type))
	return c.JSON(http.StatusCreated, activity)
}
