package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRouter_Match(t *testing.T) {
	r := NewRouter(zap.NewNop(), 0)
	r.Handle("notifications/{id}", func(context.Context, Event) error { return nil })
	r.Handle("prayers/{prayerId}/updates/{id}", func(context.Context, Event) error { return nil })

	tests := []struct {
		path   string
		ok     bool
		params map[string]string
	}{
		{"notifications/abc", true, map[string]string{"id": "abc"}},
		{"/notifications/abc/", true, map[string]string{"id": "abc"}},
		{"prayers/p1/updates/u1", true, map[string]string{"prayerId": "p1", "id": "u1"}},
		{"prayers/p1/comments/u1", false, nil},
		{"notifications", false, nil},
		{"notifications/a/b", false, nil},
		{"groups/g1", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, params, ok := r.Match(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestRouter_DispatchDecodes(t *testing.T) {
	r := NewRouter(zap.NewNop(), 0)

	var got struct {
		Receiver string `bson:"receiverId"`
	}
	var gotID string
	r.Handle("notifications/{id}", func(_ context.Context, ev Event) error {
		gotID = ev.Params["id"]
		return ev.Decode(&got)
	})

	raw, err := bson.Marshal(bson.M{"receiverId": "u1"})
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), "notifications/n1", raw))
	assert.Equal(t, "n1", gotID)
	assert.Equal(t, "u1", got.Receiver)

	// Unknown paths are ignored.
	assert.NoError(t, r.Dispatch(context.Background(), "nowhere/1", raw))
}

func TestEvent_DecodeEmpty(t *testing.T) {
	var v bson.M
	assert.Error(t, Event{Path: "notifications/x"}.Decode(&v))
}

func TestInline_DispatchesAsync(t *testing.T) {
	r := NewRouter(zap.NewNop(), time.Second)

	var calls atomic.Int32
	var hadDeadline atomic.Bool
	r.Handle("notifications/{id}", func(ctx context.Context, ev Event) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		calls.Add(1)
		return errors.New("handler errors are logged, not returned")
	})

	sink := NewInline(r, zap.NewNop())
	sink.Created("notifications/n1", bson.M{"receiverId": "u1"})
	sink.Created("notifications/n2", bson.M{"receiverId": "u2"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, hadDeadline.Load())
}

func TestRouter_GoRecoversPanic(t *testing.T) {
	r := NewRouter(zap.NewNop(), time.Second)
	r.Handle("notifications/{id}", func(context.Context, Event) error { panic("boom") })

	r.Go("notifications/x", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, r.Wait(ctx))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop{}.Created("notifications/x", bson.M{}) })
}
