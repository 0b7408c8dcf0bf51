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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUserRequest is the payload of POST /api/users
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

// UpdateUserRequest is the payload of PUT /api/users/:id. Empty fields
// are left unchanged.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

// ListUsers returns all accounts without password hashes
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if err := database.GetDB().Order("created_at ASC").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve users", err))
	}

	return c.JSON(http.StatusOK, users)
}

// CreateUser registers an account. Only administrators reach this
// handler; the route carries the admin guard.
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)

	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid user data", err))
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	db := database.GetDB()
	var existing model.User
	if err := db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create user"})
	}

	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     req.Role,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&user).Error; err != nil {
		if code, ok := uniqueViolation(err); ok {
			log.Warn("Duplicate email on create", zap.String("email", req.Email), zap.String("pg_code", code))
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
		}
		log.Error("Failed to create user", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to create user", err))
	}

	log.Info("User created",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role))
	return c.JSON(http.StatusCreated, user)
}

// UpdateUser changes name, email, role or password of an account
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid user data", err))
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		log.Error("Failed to load user", zap.String("user_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Database Error", err))
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update user"})
		}
		user.Password = string(hash)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Save(&user).Error; err != nil {
		if code, ok := uniqueViolation(err); ok {
			log.Warn("Duplicate email on update", zap.String("user_id", id), zap.String("pg_code", code))
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
		}
		log.Error("Failed to update user", zap.String("user_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to update user", err))
	}

	log.Info("User updated", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes an account. Administrators cannot delete
// themselves.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	if callerID, ok := c.Get("user_id").(string); ok && callerID == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "You cannot delete your own account"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := database.GetDB().Delete(&model.User{}, "id = ?", id)
	if result.Error != nil {
		log.Error("Failed to delete user", zap.String("user_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to delete user", result.Error))
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	log.Info("User deleted", zap.String("user_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted"})
}
