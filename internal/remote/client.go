package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"shiftscheduler/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	healthTimeout  = 3 * time.Second
)

// Config locates the sync server. Token may carry the bearer token from a
// previous run; the client re-authenticates with the passphrase when the
// token is missing or expired.
type Config struct {
	BaseURL    string
	Passphrase string
	Token      string
	Timeout    time.Duration
}

// Client is the HTTP implementation of Service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	token string
}

var _ Service = (*Client)(nil)

// NewClient creates a sync client. A zero Timeout gets the default.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		token:  cfg.Token,
	}
}

// CurrentToken returns the bearer token after any re-authentication, so the
// caller can persist it for the next run.
func (c *Client) CurrentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// IsAvailable probes the health endpoint with a short deadline. Callers probe
// before every sync attempt; the result is never cached.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.cfg.BaseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) UploadPending(ctx context.Context, records []Record) ([]UploadResult, error) {
	if len(records) == 0 {
		return nil, nil
	}
	in := struct {
		Records []Record `json:"records"`
	}{Records: records}
	var out struct {
		Results []UploadResult `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/sync/upload", in, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) DownloadRemote(ctx context.Context, after int64) ([]Record, int64, error) {
	var out struct {
		Records []Record `json:"records"`
		Cursor  int64    `json:"cursor"`
	}
	path := "/api/v1/sync/download?after=" + strconv.FormatInt(after, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Records, out.Cursor, nil
}

func (c *Client) PendingConflicts(ctx context.Context) ([]model.Conflict, error) {
	var out struct {
		Conflicts []model.Conflict `json:"conflicts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/sync/conflicts", nil, &out); err != nil {
		return nil, err
	}
	return out.Conflicts, nil
}

// Resolve reports the chosen side to the server and returns the winning
// record at its new revision. The merged payload is only read for the Merged
// resolution; for the other two the server already holds both sides.
func (c *Client) Resolve(ctx context.Context, conflictID string, res model.Resolution, merged json.RawMessage) (*Record, error) {
	in := struct {
		Resolution model.Resolution `json:"resolution"`
		Payload    json.RawMessage  `json:"payload,omitempty"`
	}{Resolution: res, Payload: merged}
	var out struct {
		Record *Record `json:"record"`
	}
	path := "/api/v1/sync/conflicts/" + conflictID + "/resolve"
	if err := c.doJSON(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return out.Record, nil
}

func (c *Client) Reset(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/sync/reset", nil, nil)
}

// ── transport plumbing ──

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// doJSON sends one request and decodes the response envelope. A 401 triggers
// one re-authentication with the passphrase and a single retry.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	if c.cfg.BaseURL == "" {
		return ErrNotConfigured
	}
	status, data, err := c.roundTrip(ctx, method, path, in)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.authenticate(ctx); err != nil {
			return err
		}
		status, data, err = c.roundTrip(ctx, method, path, in)
		if err != nil {
			return err
		}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return fmt.Errorf("remote: %s %s: %s", method, path, serverMessage(status, data))
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in interface{}) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.CurrentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func (c *Client) authenticate(ctx context.Context) error {
	if c.cfg.Passphrase == "" {
		return ErrAuthFailed
	}
	payload, err := json.Marshal(map[string]string{"passphrase": c.cfg.Passphrase})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/auth/token", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote: token request: %s", serverMessage(resp.StatusCode, data))
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("remote: decode token response: %w", err)
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &tok); err != nil || tok.Token == "" {
		return errors.New("remote: token missing in response")
	}
	c.mu.Lock()
	c.token = tok.Token
	c.mu.Unlock()
	c.logger.Debug("authenticated against sync server")
	return nil
}

func serverMessage(status int, data []byte) string {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Message != "" {
		return fmt.Sprintf("status %d: %s", status, env.Message)
	}
	return fmt.Sprintf("status %d", status)
}
