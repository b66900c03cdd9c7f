package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"healthsync/internal/app/client/config"
	"healthsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// ErrUnauthorized токен не принят сервером
var ErrUnauthorized = errors.New("unauthorized")

// APIError ответ сервера с кодом 4xx/5xx
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ошибка сервера (%d): %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Client HTTP-клиент API синхронизации
type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	deviceID  string
	userAgent string
}

func New(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		log:       log,
		baseURL:   cfg.BaseURL(),
		token:     cfg.Token,
		deviceID:  cfg.DeviceID,
		userAgent: "syncctl/1.0",
	}
}

// HealthCheck проверяет доступность сервера
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func (c *Client) Upload(ctx context.Context, req sync.UploadRequest) (*sync.UploadResponse, error) {
	var resp sync.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download возвращает данные без разбора по типам: клиенту они нужны как есть
func (c *Client) Download(ctx context.Context, req sync.DownloadRequest) (*DownloadResponse, error) {
	var resp DownloadResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync/download", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadResponse ответ download с необработанными записями
type DownloadResponse struct {
	SyncID    string                            `json:"syncId"`
	Status    sync.Status                       `json:"status"`
	Timestamp time.Time                         `json:"timestamp"`
	Data      map[sync.DataType]json.RawMessage `json:"data"`
	Summary   sync.DownloadSummary              `json:"summary"`
}

func (c *Client) Status(ctx context.Context, q sync.StatusQuery) (*sync.StatusResponse, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.From != nil {
		params.Set("from", q.From.UTC().Format(time.RFC3339Nano))
	}
	if q.To != nil {
		params.Set("to", q.To.UTC().Format(time.RFC3339Nano))
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.SyncType != "" {
		params.Set("syncType", string(q.SyncType))
	}

	var resp sync.StatusResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/sync/status", params), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Session(ctx context.Context, syncID string) (*sync.Session, error) {
	var resp sync.Session
	if err := c.do(ctx, http.MethodGet, "/api/sync/sessions/"+url.PathEscape(syncID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Conflicts(ctx context.Context, page, limit int) (*sync.ConflictsResponse, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp sync.ConflictsResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/sync/conflicts", params), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Resolve(ctx context.Context, req sync.ResolveConflictRequest) (*sync.ResolveConflictResponse, error) {
	var resp sync.ResolveConflictResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync/conflicts/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	c.log.Debug("Отправка запроса", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}

	return c.parseResponse(resp, result)
}

func (c *Client) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	c.log.Debug("Получен ответ", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= 400 {
		// auth отвечает {"error": ...}, huma отвечает problem+json с detail
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		msg := http.StatusText(resp.StatusCode)
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Detail != "" {
				msg = errResp.Detail
			} else if errResp.Error != "" {
				msg = errResp.Error
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}
