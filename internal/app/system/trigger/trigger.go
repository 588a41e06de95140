// Package trigger turns "document created" notices into handler calls.
//
// A Router maps document paths such as "notifications/{id}" to handlers.
// Events reach the router either from a Watcher (Mongo change streams) or
// from an Inline sink that writers call after inserting. Either way each
// event runs in its own goroutine on a detached context, so a slow or
// failing handler never affects the write that produced the document.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 60 * time.Second

// Event is one created document.
type Event struct {
	Path   string
	Params map[string]string
	Doc    bson.Raw
}

// Decode unmarshals the event's document into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Doc) == 0 {
		return fmt.Errorf("trigger %s: empty document", e.Path)
	}
	return bson.Unmarshal(e.Doc, v)
}

type Handler func(ctx context.Context, ev Event) error

type route struct {
	pattern string
	segs    []string
	h       Handler
}

// Router dispatches events to the handler whose pattern matches the path.
type Router struct {
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	routes []route

	inflight sync.WaitGroup
}

func NewRouter(log *zap.Logger, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{log: log, timeout: timeout}
}

// Handle registers h for pattern. Pattern segments wrapped in braces bind
// the corresponding path segment, e.g. "prayers/{prayerId}/updates/{id}".
func (r *Router) Handle(pattern string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{pattern: pattern, segs: strings.Split(pattern, "/"), h: h})
}

// Match finds the handler for path and its bound parameters.
func (r *Router) Match(path string) (Handler, map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if params, ok := matchSegs(rt.segs, parts); ok {
			return rt.h, params, true
		}
	}
	return nil, nil, false
}

func matchSegs(segs, parts []string) (map[string]string, bool) {
	if len(segs) != len(parts) {
		return nil, false
	}
	params := map[string]string{}
	for i, s := range segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			if parts[i] == "" {
				return nil, false
			}
			params[s[1:len(s)-1]] = parts[i]
			continue
		}
		if s != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// Dispatch runs the matching handler synchronously. A path with no route is
// ignored.
func (r *Router) Dispatch(ctx context.Context, path string, doc bson.Raw) error {
	h, params, ok := r.Match(path)
	if !ok {
		r.log.Debug("trigger: no route", zap.String("path", path))
		return nil
	}
	return h(ctx, Event{Path: path, Params: params, Doc: doc})
}

// Go runs the matching handler in its own goroutine with a fresh timeout
// context. Errors and panics are logged.
func (r *Router) Go(path string, doc bson.Raw) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("trigger: handler panic", zap.String("path", path), zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		if err := r.Dispatch(ctx, path, doc); err != nil {
			r.log.Error("trigger: handler failed",
				zap.String("path", path),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every handler started with Go has returned or ctx ends.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sink is notified by writers after a document was created.
type Sink interface {
	Created(path string, doc interface{})
}

// Nop discards notices. Used when a Watcher observes the store directly.
type Nop struct{}

func (Nop) Created(string, interface{}) {}

// Inline dispatches notices straight to a Router.
type Inline struct {
	router *Router
	log    *zap.Logger
}

func NewInline(router *Router, log *zap.Logger) *Inline {
	return &Inline{router: router, log: log}
}

func (s *Inline) Created(path string, doc interface{}) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		s.log.Error("trigger: marshal created document", zap.String("path", path), zap.Error(err))
		return
	}
	s.router.Go(path, raw)
}
