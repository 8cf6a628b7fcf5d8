// Пакет directory — HTTP-клиент к API атрибутов пользователей каталога.
//
// GET  {base}/users — {"users":[{"username":"...","attributes":[{"Name":"...","Value":"..."}]}]}
// POST {base}/users — {"username":"...","attributes":[{"name":"...","value":"..."}]},
// ответ — JSON-строка подтверждения или {"message":"..."}.
//
// Учётные данные вызывающего (Bearer + access token) берутся из контекста.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// ErrNoCredentials — в контексте нет учётных данных вызывающего.
var ErrNoCredentials = errors.New("отсутствуют учётные данные для каталога")

// Client — HTTP-клиент к API атрибутов.
type Client struct {
	baseURL           string
	accessTokenHeader string
	httpClient        *http.Client
	logger            *slog.Logger
}

// New создаёт клиент.
// accessTokenHeader — имя заголовка для «сырого» access token (пустой — не отправлять).
func New(baseURL, accessTokenHeader string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		accessTokenHeader: accessTokenHeader,
		httpClient:        httpClient,
		logger:            logger.With(slog.String("component", "directory_client")),
	}
}

// wireAttribute — пара в ответе GET (формат каталога, поля с заглавной буквы).
type wireAttribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type wireUser struct {
	Username   string          `json:"username"`
	Attributes []wireAttribute `json:"attributes"`
}

type listUsersResponse struct {
	Users []wireUser `json:"users"`
}

// FetchRoster возвращает всех пользователей каталога.
func (c *Client) FetchRoster(ctx context.Context) ([]model.DirectoryRecord, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var body listUsersResponse
	if err := decodeResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("FetchRoster: %w", err)
	}

	records := make([]model.DirectoryRecord, 0, len(body.Users))
	for _, u := range body.Users {
		attrs := make([]model.DirectoryAttribute, 0, len(u.Attributes))
		for _, a := range u.Attributes {
			attrs = append(attrs, model.DirectoryAttribute{Name: a.Name, Value: a.Value})
		}
		records = append(records, model.DirectoryRecord{Username: u.Username, Attributes: attrs})
	}

	c.logger.Debug("Пользователи получены из каталога", slog.Int("count", len(records)))
	return records, nil
}

// CommitAttributes отправляет атрибуты пользователя и возвращает подтверждение каталога.
func (c *Client) CommitAttributes(ctx context.Context, record model.DirectoryRecord) (string, error) {
	resp, err := c.doAuthorized(ctx, http.MethodPost, "/users", record)
	if err != nil {
		return "", err
	}

	var raw json.RawMessage
	if err := decodeResponse(resp, &raw); err != nil {
		return "", fmt.Errorf("CommitAttributes: %w", err)
	}

	return acknowledgement(raw, record.Username), nil
}

// acknowledgement извлекает сообщение из ответа: строка или объект с полем message.
func acknowledgement(raw json.RawMessage, username string) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
		return msg
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}

	return fmt.Sprintf("Атрибуты пользователя '%s' обновлены", username)
}

// --- HTTP helpers ---

// doAuthorized выполняет запрос с учётными данными вызывающего из контекста.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	creds, ok := CredentialsFromContext(ctx)
	if !ok || creds.BearerToken == "" {
		return nil, ErrNoCredentials
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
	if c.accessTokenHeader != "" && creds.AccessToken != "" {
		req.Header.Set(c.accessTokenHeader, creds.AccessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("декодирование ответа каталога: %w", err)
	}
	return nil
}

// CheckReady проверяет доступность каталога. Реализует handlers.ReadinessChecker.
// Без учётных данных проверяется только установление соединения.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users", http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("каталог недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "degraded", fmt.Sprintf("каталог вернул статус %d", resp.StatusCode)
	}
	return "ok", "каталог доступен"
}
