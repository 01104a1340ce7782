package driver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeBridge emulates the serial-to-HTTP bridge in front of the projector.
type fakeBridge struct {
	mu            sync.Mutex
	aliveBody     string
	resultBody    string
	status        int
	aliveFailures int // next n /alive requests fail with 503
	requests      []string

	srv *httptest.Server
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	b := &fakeBridge{
		aliveBody:  `{"alive":1}`,
		resultBody: `{"result":">*modelname=?# *modelname=W1070"}`,
		status:     http.StatusOK,
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	req := r.URL.Path
	if r.URL.RawQuery != "" {
		req += "?" + r.URL.RawQuery
	}
	b.requests = append(b.requests, req)
	status, alive, result := b.status, b.aliveBody, b.resultBody
	if r.URL.Path == "/alive" && b.aliveFailures > 0 {
		b.aliveFailures--
		status = http.StatusServiceUnavailable
	}
	b.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "bridge busy", status)
		return
	}
	switch r.URL.Path {
	case "/alive":
		_, _ = w.Write([]byte(alive))
	case "/cmd":
		_, _ = w.Write([]byte(`{"queued":true}`))
	case "/result":
		_, _ = w.Write([]byte(result))
	default:
		http.NotFound(w, r)
	}
}

// server returns host:port, the form the driver config uses.
func (b *fakeBridge) server() string {
	return strings.TrimPrefix(b.srv.URL, "http://")
}

func (b *fakeBridge) set(fn func(b *fakeBridge)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBridge) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBridge) count(req string) int {
	n := 0
	for _, r := range b.seen() {
		if r == req {
			n++
		}
	}
	return n
}
