// Package actor carries the acting user through a request context.
//
// Services never reach for an ambient "current user"; they receive the
// context and ask this package. The HTTP session middleware (see package
// auth) is the only writer in production code.
package actor

import (
	"context"
	"errors"
	"strings"
)

// ErrNotAuthenticated is returned by mutating operations when no acting
// user is present in the context.
var ErrNotAuthenticated = errors.New("not authenticated")

// Actor identifies the user performing an action.
type Actor struct {
	UID         string
	DisplayName string
}

type ctxKey struct{}

// With returns a copy of ctx carrying a.
func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// From returns the actor in ctx, if any.
func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	if !ok || strings.TrimSpace(a.UID) == "" {
		return Actor{}, false
	}
	return a, true
}

// Require returns the actor in ctx or ErrNotAuthenticated.
func Require(ctx context.Context) (Actor, error) {
	a, ok := From(ctx)
	if !ok {
		return Actor{}, ErrNotAuthenticated
	}
	return a, nil
}
