// Package fcm sends push messages through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/dalemusser/prayerodyssey/internal/app/system/push"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxMulticast is the per-call token limit of SendEachForMulticast.
const maxMulticast = 500

// multicaster is the part of messaging.Client the sender uses.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements push.Sender on top of the Firebase Admin SDK.
type Client struct {
	mc  multicaster
	log *zap.Logger

	isUnregistered    func(error) bool
	isInvalidArgument func(error) bool
}

// New builds a client. An empty credentialsFile falls back to Application
// Default Credentials.
func New(ctx context.Context, credentialsFile string, log *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	log.Info("fcm client initialized")
	return newClient(mc, log), nil
}

func newClient(mc multicaster, log *zap.Logger) *Client {
	return &Client{
		mc:                mc,
		log:               log,
		isUnregistered:    messaging.IsUnregistered,
		isInvalidArgument: messaging.IsInvalidArgument,
	}
}

// Send multicasts msg to tokens in batches of at most 500. A transport
// error on one batch aborts the remaining batches.
func (c *Client) Send(ctx context.Context, tokens []string, msg push.Message) (push.Result, error) {
	var res push.Result
	for start := 0; start < len(tokens); start += maxMulticast {
		end := start + maxMulticast
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		br, err := c.mc.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		})
		if err != nil {
			return res, fmt.Errorf("fcm multicast: %w", err)
		}

		res.SuccessCount += br.SuccessCount
		res.FailureCount += br.FailureCount
		res.Unregistered = append(res.Unregistered, c.deadTokens(batch, br)...)
	}
	return res, nil
}

// deadTokens picks the tokens of one batch that should leave the registry.
// Unregistered tokens always qualify. An invalid-argument error only
// condemns the token when another token in the batch succeeded; otherwise
// the payload itself was rejected and every token would fail alike.
func (c *Client) deadTokens(batch []string, br *messaging.BatchResponse) []string {
	var dead []string
	for i, r := range br.Responses {
		if r.Success || i >= len(batch) {
			continue
		}
		switch {
		case c.isUnregistered(r.Error):
			dead = append(dead, batch[i])
		case c.isInvalidArgument(r.Error) && br.SuccessCount > 0:
			dead = append(dead, batch[i])
		}
		c.log.Debug("fcm: token send failed", zap.String("token", abbrev(batch[i])), zap.Error(r.Error))
	}
	return dead
}

func abbrev(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
