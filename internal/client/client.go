// Package client 是 Lumi REST 接口的 HTTP 客户端。
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
	"strings"
	"time"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
)

// DefaultBaseURL 是本地开发时后端的地址。
const DefaultBaseURL = "http://localhost:4000"

// APIError 表示服务端返回的非 2xx 响应。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsValidation 表示这是需要原样展示给用户的 4xx 错误。
func (e *APIError) IsValidation() bool {
	return e.Status >= 400 && e.Status < 500
}

// Account 是注册或登录成功后的身份。
type Account struct {
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ChatRequest 对应 POST /api/chat 的请求体。
type ChatRequest struct {
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message"`
	IsGuest bool   `json:"isGuest"`
}

// ChatReply 对应 POST /api/chat 的响应体。
type ChatReply struct {
	Reply   string        `json:"reply"`
	Emotion emotion.Label `json:"emotion"`
}

// Client 调用 Lumi 后端。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端。httpClient 为空时使用 60 秒超时的默认客户端。
func New(baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Register 创建账号。
func (c *Client) Register(ctx context.Context, reg user.Registration) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodPost, "/api/auth/register", reg, &out)
	return out, err
}

// Login 校验凭证。
func (c *Client) Login(ctx context.Context, email, password string) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

// Chat 发送一条消息。
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/api/chat", req, &out)
	return out, err
}

// History 返回注册用户的全部对话，旧的在前。
func (c *Client) History(ctx context.Context, userID string) ([]chat.Entry, error) {
	var out []chat.Entry
	err := c.do(ctx, http.MethodGet, "/api/history/"+url.PathEscape(userID), nil, &out)
	return out, err
}

// Persona 返回服务端的默认角色。
func (c *Client) Persona(ctx context.Context) (persona.Persona, error) {
	var out persona.Persona
	err := c.do(ctx, http.MethodGet, "/api/persona", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Message = payload.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// AsAPIError 取出 err 链中的 APIError。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
