// internal/app/system/push/handler.go
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Result is the outcome of one multicast.
type Result struct {
	SuccessCount int
	FailureCount int
	// Unregistered lists tokens the transport reported as no longer valid.
	Unregistered []string
}

// Sender hands a message to the push transport for every token.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (Result, error)
}

// TokenSource is the slice of the token registry the handler needs.
type TokenSource interface {
	Tokens(ctx context.Context, uid string) ([]string, error)
	Prune(ctx context.Context, uid string, tokens []string) ([]string, error)
}

var (
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prayerodyssey",
		Subsystem: "push",
		Name:      "deliveries_total",
		Help:      "Notification records processed by the push trigger, by outcome.",
	}, []string{"outcome"})

	tokenSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prayerodyssey",
		Subsystem: "push",
		Name:      "token_sends_total",
		Help:      "Per-token push results reported by the transport.",
	}, []string{"result"})
)

// Options tune the handler.
type Options struct {
	// PruneUnregistered removes tokens the transport reports as unregistered.
	PruneUnregistered bool
}

// Handler delivers a push message for each created notification record.
// Delivery is best effort: failures are logged and counted, never retried.
type Handler struct {
	tokens TokenSource
	sender Sender
	opts   Options
	log    *zap.Logger
}

func NewHandler(tokens TokenSource, sender Sender, opts Options, log *zap.Logger) *Handler {
	return &Handler{tokens: tokens, sender: sender, opts: opts, log: log}
}

// OnCreated is the trigger handler for notifications/{id}.
func (h *Handler) OnCreated(ctx context.Context, ev trigger.Event) error {
	var n models.Notification
	if err := ev.Decode(&n); err != nil {
		deliveries.WithLabelValues("bad_event").Inc()
		return fmt.Errorf("decode notification %s: %w", ev.Params["id"], err)
	}
	return h.Deliver(ctx, n)
}

// Deliver sends n to every device registered for its receiver.
func (h *Handler) Deliver(ctx context.Context, n models.Notification) error {
	deliveryID := uuid.NewString()
	log := h.log.With(
		zap.String("delivery_id", deliveryID),
		zap.String("notification_id", n.ID.Hex()),
		zap.String("receiver_id", n.ReceiverID),
		zap.String("type", n.Type),
	)

	tokens, err := h.tokens.Tokens(ctx, n.ReceiverID)
	if err != nil {
		deliveries.WithLabelValues("token_lookup_failed").Inc()
		log.Error("push: load tokens", zap.Error(err))
		return nil
	}
	if len(tokens) == 0 {
		deliveries.WithLabelValues("no_tokens").Inc()
		log.Info("push: receiver has no tokens")
		return nil
	}

	msg := Compose(n)
	start := time.Now()
	res, err := h.sender.Send(ctx, tokens, msg)
	if err != nil {
		deliveries.WithLabelValues("send_failed").Inc()
		log.Error("push: multicast failed",
			zap.Int("tokens", len(tokens)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil
	}

	deliveries.WithLabelValues("sent").Inc()
	tokenSends.WithLabelValues("success").Add(float64(res.SuccessCount))
	tokenSends.WithLabelValues("failure").Add(float64(res.FailureCount))
	log.Info("push: multicast sent",
		zap.Int("tokens", len(tokens)),
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount),
		zap.Duration("elapsed", time.Since(start)))

	if len(res.Unregistered) > 0 {
		if !h.opts.PruneUnregistered {
			log.Info("push: unregistered tokens reported", zap.Int("count", len(res.Unregistered)))
			return nil
		}
		removed, err := h.tokens.Prune(ctx, n.ReceiverID, res.Unregistered)
		if err != nil {
			log.Warn("push: prune unregistered tokens", zap.Error(err))
			return nil
		}
		log.Info("push: pruned unregistered tokens", zap.Int("count", len(removed)))
	}
	return nil
}

// LogSender stands in for the transport when push is disabled. It reports
// every token as delivered.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, tokens []string, msg Message) (Result, error) {
	s.Log.Debug("push disabled; not sending",
		zap.Int("tokens", len(tokens)),
		zap.String("title", msg.Title),
		zap.String("url", msg.Data["url"]))
	return Result{SuccessCount: len(tokens)}, nil
}
