// Package firebase implements the remote gateway against a Firebase
// Realtime Database style REST endpoint: path-addressed JSON documents,
// `GET/POST <base>/<path>.json` for collections and
// `PUT/DELETE <base>/<path>/<id>.json` for single records.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/galina-antipin/join/internal/domain/entities"
	"github.com/galina-antipin/join/internal/infrastructure/config"
	"github.com/galina-antipin/join/internal/infrastructure/logger"
)

// Client talks to the remote JSON document store. It interprets no
// entity semantics; records go in and out as raw JSON.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// New creates a gateway client from configuration.
func New(cfg config.FirebaseConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.WithComponent("firebase"),
	}
}

// collectionURL builds <base>/<path>.json
func (c *Client) collectionURL(path string) string {
	return c.baseURL + "/" + strings.Trim(path, "/") + ".json"
}

// recordURL builds <base>/<path>/<id>.json
func (c *Client) recordURL(path, id string) string {
	return c.baseURL + "/" + strings.Trim(path, "/") + "/" + id + ".json"
}

func (c *Client) do(ctx context.Context, op, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := float64(time.Since(start).Nanoseconds()) / 1000000
	if err != nil {
		c.logger.LogGatewayCall(op, url, 0, duration, err)
		return nil, &entities.TransportError{Op: op, Path: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.LogGatewayCall(op, url, resp.StatusCode, duration, err)
		return nil, &entities.TransportError{Op: op, Path: url, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.LogGatewayCall(op, url, resp.StatusCode, duration, nil)
		return nil, &entities.TransportError{Op: op, Path: url, StatusCode: resp.StatusCode}
	}

	c.logger.LogGatewayCall(op, url, resp.StatusCode, duration, nil)
	return data, nil
}

// FetchCollection loads all records under path. A remote `null` body
// (empty collection) yields an empty map.
func (c *Client) FetchCollection(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	url := c.collectionURL(path)
	data, err := c.do(ctx, "fetch", http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if isNull(data) {
		return map[string]json.RawMessage{}, nil
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &entities.DecodeError{Path: url, Err: err}
	}
	if records == nil {
		records = map[string]json.RawMessage{}
	}
	return records, nil
}

// CreateEntity posts a new record and returns the id the store assigned.
// Firebase answers a POST with `{"name": "<new id>"}`.
func (c *Client) CreateEntity(ctx context.Context, path string, fields any) (string, error) {
	url := c.collectionURL(path)
	data, err := c.do(ctx, "create", http.MethodPost, url, fields)
	if err != nil {
		return "", err
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &entities.DecodeError{Path: url, Err: err}
	}
	if result.Name == "" {
		return "", &entities.DecodeError{Path: url, Err: fmt.Errorf("response carries no record id")}
	}
	return result.Name, nil
}

// UpdateEntity replaces the record at path/id in full.
func (c *Client) UpdateEntity(ctx context.Context, path, id string, fields any) error {
	_, err := c.do(ctx, "update", http.MethodPut, c.recordURL(path, id), fields)
	return err
}

// DeleteEntity removes the record at path/id.
func (c *Client) DeleteEntity(ctx context.Context, path, id string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, c.recordURL(path, id), nil)
	return err
}

// Ping checks remote reachability with a shallow collection read.
func (c *Client) Ping(ctx context.Context, path string) error {
	_, err := c.do(ctx, "ping", http.MethodGet, c.collectionURL(path)+"?shallow=true", nil)
	return err
}

func isNull(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
