// internal/app/store/tokens/policy.go
package tokenstore

import (
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
)

const (
	DefaultCap    = 10
	DefaultMaxAge = 30 * 24 * time.Hour

	maxTokenLen = 4096
)

var (
	ErrEmptyToken   = errors.New("push token is required")
	ErrInvalidToken = errors.New("push token contains invalid characters")
	ErrTokenTooLong = errors.New("push token is too long")
)

// Policy holds the retention rules applied to a user's token list.
type Policy struct {
	Cap    int           // max tokens kept per user
	MaxAge time.Duration // entries created longer ago than this are stale
}

func DefaultPolicy() Policy {
	return Policy{Cap: DefaultCap, MaxAge: DefaultMaxAge}
}

func (p Policy) normalized() Policy {
	if p.Cap <= 0 {
		p.Cap = DefaultCap
	}
	if p.MaxAge <= 0 {
		p.MaxAge = DefaultMaxAge
	}
	return p
}

// Device is the client-reported metadata sent with a registration.
type Device struct {
	Platform  string `json:"platform"`
	UserAgent string `json:"userAgent"`
	IsPWA     bool   `json:"isPWA"`
}

// ValidateToken rejects tokens that cannot be stored as a metadata key.
func ValidateToken(token string) error {
	switch {
	case token == "":
		return ErrEmptyToken
	case len(token) > maxTokenLen:
		return ErrTokenTooLong
	case strings.ContainsAny(token, ".$\x00"):
		return ErrInvalidToken
	}
	return nil
}

// registry is one user's token state while a mutation is computed.
type registry struct {
	tokens []string
	info   map[string]models.TokenInfo
}

func newRegistry(tokens []string, info map[string]models.TokenInfo) *registry {
	r := &registry{
		tokens: append([]string{}, tokens...),
		info:   make(map[string]models.TokenInfo, len(info)),
	}
	for k, v := range info {
		r.info[k] = v
	}
	return r
}

func (r *registry) contains(token string) bool {
	for _, t := range r.tokens {
		if t == token {
			return true
		}
	}
	return false
}

// remove drops every token in drop from both the list and the metadata,
// and returns the tokens that were actually present.
func (r *registry) remove(drop map[string]struct{}) []string {
	var removed []string
	kept := r.tokens[:0]
	for _, t := range r.tokens {
		if _, ok := drop[t]; ok {
			removed = append(removed, t)
			delete(r.info, t)
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return removed
}

// sweep removes entries whose CreatedAt is older than MaxAge. Entries with
// no CreatedAt are kept.
func (p Policy) sweep(r *registry, now time.Time) []string {
	p = p.normalized()
	cutoff := now.Add(-p.MaxAge)
	stale := map[string]struct{}{}
	for _, t := range r.tokens {
		info, ok := r.info[t]
		if !ok || info.CreatedAt == nil {
			continue
		}
		if info.CreatedAt.Before(cutoff) {
			stale[t] = struct{}{}
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return r.remove(stale)
}

// register adds token to r. A token already present only has its LastUsed
// refreshed. Otherwise the oldest registrations are evicted so that at most
// Cap-1 remain before the new token is appended.
func (p Policy) register(r *registry, token string, d Device, now time.Time) (duplicate bool, evicted []string) {
	p = p.normalized()

	if r.contains(token) {
		info := r.info[token]
		info.LastUsed = &now
		r.info[token] = info
		return true, nil
	}

	if over := len(r.tokens) - (p.Cap - 1); over > 0 {
		drop := make(map[string]struct{}, over)
		for _, t := range r.tokens[:over] {
			drop[t] = struct{}{}
		}
		evicted = r.remove(drop)
	}

	r.tokens = append(r.tokens, token)
	r.info[token] = models.TokenInfo{
		Platform:  d.Platform,
		UserAgent: d.UserAgent,
		IsPWA:     d.IsPWA,
		CreatedAt: &now,
		LastUsed:  &now,
	}
	return false, evicted
}
