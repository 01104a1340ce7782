package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/backoff"
)

const (
	pathAlive  = "/alive"
	pathCmd    = "/cmd"
	pathResult = "/result"

	cmdModelName = "modelname"
	cmdPowerOn   = "poweron"
	cmdPowerOff  = "poweroff"

	maxBodyBytes   = 64 * 1024
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// RequestObserver is told about every bridge request once it completes.
type RequestObserver func(endpoint string, err error, took time.Duration)

// Client talks to the serial-to-HTTP bridge in front of the projector.
type Client struct {
	baseURL     string
	http        *http.Client
	resultDelay time.Duration
	attempts    int
	observe     RequestObserver
}

func NewClient(server string, timeout, resultDelay time.Duration, attempts int) *Client {
	base := strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		baseURL:     base,
		http:        &http.Client{Timeout: timeout},
		resultDelay: resultDelay,
		attempts:    attempts,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetObserver installs a hook for request metrics.
func (c *Client) SetObserver(fn RequestObserver) { c.observe = fn }

// Alive reads the bridge heartbeat: {"alive": <number>}.
func (c *Client) Alive(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "alive", pathAlive)
	if err != nil {
		return 0, err
	}
	var out struct {
		Alive *float64 `json:"alive"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: decode alive response: %v", ErrParse, err)
	}
	if out.Alive == nil {
		return 0, fmt.Errorf("%w: alive response has no alive field", ErrParse)
	}
	return *out.Alive, nil
}

// Command queues a projector command on the bridge. The reply body only
// acknowledges the request; the projector answer is read with FetchResult.
func (c *Client) Command(ctx context.Context, name string) error {
	_, err := c.get(ctx, "cmd_"+name, pathCmd+"?"+name)
	return err
}

// FetchResult waits for the bridge to finish the previous command and reads
// its answer. An undecodable body yields an empty result, not an error.
func (c *Client) FetchResult(ctx context.Context) (string, error) {
	if c.resultDelay > 0 {
		t := time.NewTimer(c.resultDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	body, err := c.get(ctx, "result", pathResult)
	if err != nil {
		return "", err
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil
	}
	return out.Result, nil
}

// get retries transport failures with a short exponential backoff. Replies
// that arrive with an error status are not retried.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	bo := backoff.NewExponentialBackoff(retryBaseDelay, retryMaxDelay)
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		start := time.Now()
		body, retry, err := c.getOnce(ctx, path)
		if c.observe != nil {
			c.observe(endpoint, err, time.Since(start))
		}
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt == c.attempts {
			break
		}
		t := time.NewTimer(bo.Next())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: get %s: %v", ErrTransport, path, ctx.Err())
		case <-t.C:
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, path string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		retry := !errors.Is(err, context.Canceled) && ctx.Err() == nil
		return nil, retry, fmt.Errorf("%w: get %s: %v", ErrTransport, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, false, fmt.Errorf("%w: get %s failed: %s: %s", ErrTransport, path, resp.Status, strings.TrimSpace(string(b)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read %s body: %v", ErrTransport, path, err)
	}
	return body, false, nil
}
