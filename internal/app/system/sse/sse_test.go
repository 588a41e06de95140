package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStream_WritesEvents(t *testing.T) {
	n := 0
	load := func(context.Context) (int, error) { n++; return n, nil }
	never := func(ctx context.Context) (<-chan struct{}, error) {
		ch := make(chan struct{})
		go func() { <-ctx.Done(); close(ch) }()
		return ch, nil
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed, err := live.Open(r.Context(), load, never, zap.NewNop())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		Stream(w, r, feed, "count", zap.NewNop())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"event: count", "data: 1"}, lines)
}

func TestStream_RequiresFlusher(t *testing.T) {
	feed, err := live.Open(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		live.Poll(time.Hour), zap.NewNop())
	require.NoError(t, err)

	w := &noFlush{header: http.Header{}}
	Stream(w, httptest.NewRequest(http.MethodGet, "/", nil), feed, "x", zap.NewNop())
	assert.Equal(t, http.StatusInternalServerError, w.status)
	assert.True(t, strings.Contains(w.body.String(), "streaming unsupported"))
}

type noFlush struct {
	header http.Header
	status int
	body   strings.Builder
}

func (w *noFlush) Header() http.Header         { return w.header }
func (w *noFlush) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *noFlush) WriteHeader(code int)        { w.status = code }
