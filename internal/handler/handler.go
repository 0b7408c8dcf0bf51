package handler

import (
	"net/http"

	"inventory-service/pkg/config"

	"github.com/labstack/echo/v4"
)

var appConfig *config.Config

// Init stores the loaded configuration for handlers that need limits
// and import settings
func Init(cfg *config.Config) {
	appConfig = cfg
}

// Health reports service liveness
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
