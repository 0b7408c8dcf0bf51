// Command seed-admin creates the initial administrator account if it
// does not exist yet.
package main

import (
	"inventory-service/internal/model"
	"inventory-service/pkg/config"
	"inventory-service/pkg/database"
	"inventory-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminName     = "Administrator"
	adminEmail    = "admin@inventory.com"
	adminPassword = "admin123"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	db := database.GetDB()
	var existing model.User
	if err := db.Where("email = ?", adminEmail).First(&existing).Error; err == nil {
		log.Info("Admin account already exists",
			zap.String("user_id", existing.ID),
			zap.String("email", adminEmail))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password", zap.Error(err))
	}

	admin := model.User{
		Name:     adminName,
		Email:    adminEmail,
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatal("Failed to create admin account", zap.Error(err))
	}

	log.Info("Admin account created",
		zap.String("user_id", admin.ID),
		zap.String("email", adminEmail))
}
