// Package sse writes live feeds to the client as server-sent events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"go.uber.org/zap"
)

// KeepAlive is how often a comment line is sent on an idle stream.
var KeepAlive = 25 * time.Second

// Stream writes each snapshot of feed as an event named event until the
// client goes away or the feed stops. It closes the feed before returning.
func Stream[T any](w http.ResponseWriter, r *http.Request, feed *live.Feed[T], event string, log *zap.Logger) {
	defer feed.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case v, ok := <-feed.Updates():
			if !ok {
				if err := feed.Err(); err != nil {
					log.Warn("sse: feed stopped", zap.String("event", event), zap.Error(err))
				}
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				log.Error("sse: encode snapshot", zap.String("event", event), zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
