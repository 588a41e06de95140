// internal/app/store/tokens/tokenstore.go
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrConflict is returned when a registry write kept losing to concurrent
// writers for the same user.
var ErrConflict = errors.New("token registry: too many concurrent updates")

var errRevMismatch = errors.New("token_rev changed")

const (
	casRetries = 5
	casBase    = 20 * time.Millisecond
)

// Store manages the push tokens kept on user documents.
//
// Every write bumps token_rev. Read-modify-write operations (Register,
// SweepStale, Prune) only commit when token_rev is unchanged since the read
// and retry with exponential backoff otherwise.
type Store struct {
	c      *mongo.Collection
	policy Policy
	now    func() time.Time
}

func New(db *mongo.Database, policy Policy) *Store {
	return &Store{
		c:      db.Collection("users"),
		policy: policy.normalized(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Policy reports the retention policy in effect.
func (s *Store) Policy() Policy { return s.policy }

type tokenDoc struct {
	Tokens []string                    `bson:"fcmTokens"`
	Info   map[string]models.TokenInfo `bson:"fcmTokenInfo"`
	Rev    int64                       `bson:"token_rev"`
}

func (s *Store) load(ctx context.Context, uid string) (tokenDoc, error) {
	var d tokenDoc
	opts := options.FindOne().SetProjection(bson.M{"fcmTokens": 1, "fcmTokenInfo": 1, "token_rev": 1})
	err := s.c.FindOne(ctx, bson.M{"_id": uid}, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tokenDoc{}, nil
	}
	return d, err
}

// Tokens returns uid's current tokens in registration order. A user with
// no document has no tokens.
func (s *Store) Tokens(ctx context.Context, uid string) ([]string, error) {
	d, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if d.Tokens == nil {
		return []string{}, nil
	}
	return d.Tokens, nil
}

// Info returns the metadata map for uid's tokens.
func (s *Store) Info(ctx context.Context, uid string) (map[string]models.TokenInfo, error) {
	d, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if d.Info == nil {
		return map[string]models.TokenInfo{}, nil
	}
	return d.Info, nil
}

// mutate runs fn against the current registry of uid and writes the result
// back if fn reports a change. The write is conditional on token_rev.
func (s *Store) mutate(ctx context.Context, uid string, fn func(r *registry, now time.Time) bool) error {
	b := retry.WithMaxRetries(casRetries, retry.NewExponential(casBase))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		cur, err := s.load(ctx, uid)
		if err != nil {
			return err
		}

		now := s.now()
		r := newRegistry(cur.Tokens, cur.Info)
		if !fn(r, now) {
			return nil
		}

		filter := bson.M{"_id": uid}
		if cur.Rev == 0 {
			filter["token_rev"] = bson.M{"$exists": false}
		} else {
			filter["token_rev"] = cur.Rev
		}
		update := bson.M{
			"$set": bson.M{
				"fcmTokens":    r.tokens,
				"fcmTokenInfo": r.info,
				"updatedAt":    now,
			},
			"$inc":         bson.M{"token_rev": 1},
			"$setOnInsert": bson.M{"createdAt": now},
		}

		res, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			// Concurrent first write for a missing user, or a stale rev on an
			// existing user: the upsert collides on _id.
			if wafflemongo.IsDup(err) {
				return retry.RetryableError(errRevMismatch)
			}
			return err
		}
		if res.MatchedCount == 0 && res.UpsertedCount == 0 {
			return retry.RetryableError(errRevMismatch)
		}
		return nil
	})

	if errors.Is(err, errRevMismatch) {
		return fmt.Errorf("user %s: %w", uid, ErrConflict)
	}
	return err
}

// RegisterResult describes what a registration changed.
type RegisterResult struct {
	Duplicate bool     // token was already registered; only LastUsed changed
	Swept     []string // stale tokens removed before registering
	Evicted   []string // oldest tokens removed to respect the cap
}

// Register records token for uid: stale entries are swept, a duplicate only
// refreshes LastUsed, and the oldest registrations are evicted past the cap.
func (s *Store) Register(ctx context.Context, uid, token string, d Device) (RegisterResult, error) {
	if err := ValidateToken(token); err != nil {
		return RegisterResult{}, err
	}

	var res RegisterResult
	err := s.mutate(ctx, uid, func(r *registry, now time.Time) bool {
		res = RegisterResult{}
		res.Swept = s.policy.sweep(r, now)
		res.Duplicate, res.Evicted = s.policy.register(r, token, d, now)
		return true
	})
	if err != nil {
		return RegisterResult{}, err
	}
	return res, nil
}

// SweepStale removes uid's tokens created longer ago than the policy's
// MaxAge and returns them. Tokens without a creation time are kept.
func (s *Store) SweepStale(ctx context.Context, uid string) ([]string, error) {
	var swept []string
	err := s.mutate(ctx, uid, func(r *registry, now time.Time) bool {
		swept = s.policy.sweep(r, now)
		return len(swept) > 0
	})
	return swept, err
}

// Prune removes the given tokens from uid, typically ones the push
// transport reported as no longer registered.
func (s *Store) Prune(ctx context.Context, uid string, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	drop := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		drop[t] = struct{}{}
	}
	var removed []string
	err := s.mutate(ctx, uid, func(r *registry, _ time.Time) bool {
		removed = r.remove(drop)
		return len(removed) > 0
	})
	return removed, err
}

// Remove deletes one token and its metadata. Removing a token that is not
// registered succeeds, and a missing user document is created.
func (s *Store) Remove(ctx context.Context, uid, token string) error {
	if err := ValidateToken(token); err != nil {
		return err
	}
	now := s.now()
	update := bson.M{
		"$pull":        bson.M{"fcmTokens": token},
		"$unset":       bson.M{"fcmTokenInfo." + token: ""},
		"$set":         bson.M{"updatedAt": now},
		"$inc":         bson.M{"token_rev": 1},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true))
	return err
}

// Clear removes every token and all metadata for uid.
func (s *Store) Clear(ctx context.Context, uid string) error {
	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"fcmTokens":    bson.A{},
			"fcmTokenInfo": bson.M{},
			"updatedAt":    now,
		},
		"$inc":         bson.M{"token_rev": 1},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true))
	return err
}

// SweepAll runs SweepStale for every user holding at least one token. It
// keeps going past per-user failures and returns the first one.
func (s *Store) SweepAll(ctx context.Context) (users int, removed int, err error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.c.Find(ctx, bson.M{"fcmTokens.0": bson.M{"$exists": true}}, opts)
	if err != nil {
		return 0, 0, err
	}
	var uids []string
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			cur.Close(ctx)
			return 0, 0, err
		}
		uids = append(uids, row.ID)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return 0, 0, err
	}
	cur.Close(ctx)

	var firstErr error
	for _, uid := range uids {
		swept, err := s.SweepStale(ctx, uid)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(swept) > 0 {
			users++
			removed += len(swept)
		}
	}
	return users, removed, firstErr
}
