// Package client is the UI-facing adapter for the notification API. It
// holds the current list, re-fetches after every mutation instead of
// patching locally, and reports fetch failures on an explicit error
// channel while keeping the previous (stale) list visible.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnhub/internal/model"
)

// State is the adapter's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
)

// fetchTimeout bounds a single background refresh.
const fetchTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu            sync.Mutex
	userID        string
	token         string
	state         State
	notifications []model.Notification

	errCh     chan error
	triggerCh chan struct{}
	stopCh    chan struct{}
	running   bool
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger:    logger,
		state:     StateIdle,
		errCh:     make(chan error, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// SetUser switches the owning identity. State drops back to loading and
// the list clears; the next Refresh (manual or polled) repopulates it.
func (c *Client) SetUser(userID, token string) {
	c.mu.Lock()
	c.userID = userID
	c.token = token
	c.state = StateLoading
	c.notifications = nil
	c.mu.Unlock()

	c.TriggerRefresh()
}

// State returns the adapter's current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notifications returns a copy of the current list.
func (c *Client) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// Errors is the channel failed calls are reported on. Reads are optional;
// the channel is buffered and drops on overflow rather than blocking.
func (c *Client) Errors() <-chan error {
	return c.errCh
}

// Refresh fetches the full list. Overlapping refreshes are not
// serialized: the last response to land wins. On failure the previous
// list stays visible and the error is reported.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	hadLoaded := c.state == StateLoaded
	c.state = StateLoading
	c.mu.Unlock()

	if userID == "" {
		err := fmt.Errorf("no user set")
		c.reportError(err)
		return err
	}

	var notifications []model.Notification
	err := c.doJSON(ctx, http.MethodGet,
		"/notifications?userId="+url.QueryEscape(userID), nil, &notifications)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// Keep the stale list; callers decide what to do with the error.
		if hadLoaded {
			c.state = StateLoaded
		} else {
			c.state = StateIdle
		}
		c.reportError(err)
		return err
	}

	c.state = StateLoaded
	c.notifications = notifications
	return nil
}

// MarkRead marks a notification read, then re-fetches the full list.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
	if err != nil {
		c.reportError(err)
	}

	if rerr := c.Refresh(ctx); err == nil {
		err = rerr
	}
	return err
}

// Remove deletes a notification, then re-fetches the full list.
func (c *Client) Remove(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
	if err != nil {
		c.reportError(err)
	}

	if rerr := c.Refresh(ctx); err == nil {
		err = rerr
	}
	return err
}

// Start begins background polling at the given interval. TriggerRefresh
// pokes the loop for an immediate poll.
func (c *Client) Start(interval time.Duration) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	go c.pollLoop(interval)
}

// Stop halts background polling.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	close(c.stopCh)
	c.running = false
}

// TriggerRefresh requests an immediate poll. No-op when the loop's
// trigger buffer is already full or polling is not running.
func (c *Client) TriggerRefresh() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

func (c *Client) pollLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}

	c.mu.Lock()
	stopCh := c.stopCh
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		case <-c.triggerCh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		// Errors already land on errCh; the loop keeps polling.
		_ = c.Refresh(ctx)
		cancel()
	}
}

func (c *Client) reportError(err error) {
	if c.logger != nil {
		c.logger.Warn("Notification client error", zap.Error(err))
	}
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error != "" {
			return fmt.Errorf("notification api %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("notification api error: %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
