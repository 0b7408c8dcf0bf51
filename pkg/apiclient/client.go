// Package apiclient is the typed HTTP client of the inventory service.
// The CLI tools drive the importer, the opname workflow and the
// notification poller through it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"inventory-service/internal/excel"
	"inventory-service/internal/importer"
	"inventory-service/internal/model"

	"go.uber.org/zap"
)

// Client calls the inventory service API with bearer authentication.
// The token is acquired lazily on the first call and refreshed once
// when a request comes back 401.
type Client struct {
	BaseURL    string
	Email      string
	Password   string
	HTTPClient *http.Client
	Token      string
	Logger     *zap.Logger
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type countResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// New creates a client for the given service address and credentials
func New(baseURL, email, password string, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		Email:      email,
		Password:   password,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

// Login authenticates and stores the bearer token
func (c *Client) Login(ctx context.Context) error {
	c.Logger.Info("Logging in", zap.String("email", c.Email))

	payload, err := json.Marshal(map[string]string{
		"email":    c.Email,
		"password": c.Password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Login request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}

	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	c.Token = login.Token

	c.Logger.Info("Logged in",
		zap.String("user_id", login.User.ID),
		zap.String("role", login.User.Role))
	return nil
}

// Items lists the whole catalog, most recently updated first
func (c *Client) Items(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	if err := c.doJSON(ctx, http.MethodGet, "/api/inventory", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Images fetches the image backup used before a chunked import clears
// the catalog
func (c *Client) Images(ctx context.Context) ([]importer.ImageRef, error) {
	var refs []importer.ImageRef
	if err := c.doJSON(ctx, http.MethodGet, "/api/inventory/images", nil, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// Clear empties the catalog
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/inventory", nil, nil)
}

// BulkInsert sends one insert batch and returns the number of rows the
// server actually inserted
func (c *Client) BulkInsert(ctx context.Context, items []model.InventoryItem) (int, error) {
	var out countResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/inventory", map[string]interface{}{"items": items}, &out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ReplaceAll uploads the rows as a spreadsheet so the server replaces
// the catalog in its own transaction
func (c *Client) ReplaceAll(ctx context.Context, items []model.InventoryItem) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "import.xlsx")
	if err != nil {
		return 0, err
	}
	if err := excel.WriteItems(part, items); err != nil {
		return 0, fmt.Errorf("encode spreadsheet: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	body, err := c.do(ctx, http.MethodPost, "/api/inventory/import", &buf, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}
	var out countResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("parse import response: %w", err)
	}
	return out.Count, nil
}

// ListRecords returns the audit records, newest first
func (c *Client) ListRecords(ctx context.Context) ([]model.StockOpname, error) {
	var records []model.StockOpname
	if err := c.doJSON(ctx, http.MethodGet, "/api/stock-opname", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRecord persists one physical count
func (c *Client) CreateRecord(ctx context.Context, rec model.StockOpname) (model.StockOpname, error) {
	var saved model.StockOpname
	if err := c.doJSON(ctx, http.MethodPost, "/api/stock-opname", rec, &saved); err != nil {
		return model.StockOpname{}, err
	}
	return saved, nil
}

// UpdateRecord corrects the physical count of a record. The server
// recomputes the difference from the record's captured system
// quantity, so only the count is sent.
func (c *Client) UpdateRecord(ctx context.Context, id string, physicalQty, difference int) (model.StockOpname, error) {
	var saved model.StockOpname
	err := c.doJSON(ctx, http.MethodPatch, "/api/stock-opname/"+id,
		map[string]int{"physicalQty": physicalQty}, &saved)
	if err != nil {
		return model.StockOpname{}, err
	}
	return saved, nil
}

// AppendActivity records one activity log entry
func (c *Client) AppendActivity(ctx context.Context, typ, user, rack, message string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/activities", map[string]string{
		"type":    typ,
		"user":    user,
		"rack":    rack,
		"message": message,
	}, nil)
}

// LatestRecords implements the notification poll over audit records
func (c *Client) LatestRecords(ctx context.Context) ([]model.StockOpname, error) {
	return c.ListRecords(ctx)
}

// LatestActivities implements the notification poll over activities
func (c *Client) LatestActivities(ctx context.Context) ([]model.Activity, error) {
	var activities []model.Activity
	if err := c.doJSON(ctx, http.MethodGet, "/api/activities", nil, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	respBody, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.Token == "" {
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	// Requests with a body must be replayable for the 401 retry
	var raw []byte
	if body != nil {
		var err error
		raw, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}

	respBody, status, err := c.send(ctx, method, path, raw, contentType)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.Logger.Info("Token rejected, logging in again")
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		respBody, status, err = c.send(ctx, method, path, raw, contentType)
		if err != nil {
			return nil, err
		}
	}
	if status >= 400 {
		c.Logger.Error("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status))
		return nil, apiError(status, respBody)
	}
	return respBody, nil
}

func (c *Client) send(ctx context.Context, method, path string, raw []byte, contentType string) ([]byte, int, error) {
	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if raw != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func apiError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		if er.Details != "" {
			return fmt.Errorf("api error %d: %s (%s)", status, er.Error, er.Details)
		}
		return fmt.Errorf("api error %d: %s", status, er.Error)
	}
	return fmt.Errorf("api error %d: %s", status, string(body))
}
