// Package notificationsvc exposes the actor's own notification records.
package notificationsvc

import (
	"context"
	"errors"

	notificationstore "github.com/dalemusser/prayerodyssey/internal/app/store/notifications"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("notification not found")

// View is one snapshot of a receiver's notifications. Unread is counted
// from Items, never queried separately.
type View struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func newView(items []models.Notification) View {
	if items == nil {
		items = []models.Notification{}
	}
	v := View{Items: items}
	for _, n := range items {
		if !n.Read {
			v.Unread++
		}
	}
	return v
}

type Service struct {
	store   *notificationstore.Store
	signals live.Source
	log     *zap.Logger
}

func New(db *mongo.Database, signals live.Source, log *zap.Logger) *Service {
	return &Service{
		store:   notificationstore.New(db),
		signals: signals,
		log:     log,
	}
}

// View loads the actor's notifications, newest first.
func (s *Service) View(ctx context.Context) (View, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return View{}, err
	}
	items, err := s.store.List(ctx, a.UID)
	if err != nil {
		return View{}, err
	}
	return newView(items), nil
}

// Subscribe streams View snapshots for the actor until the feed is closed
// or ctx ends.
func (s *Service) Subscribe(ctx context.Context) (*live.Feed[View], error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}
	load := func(ctx context.Context) (View, error) {
		items, err := s.store.List(ctx, a.UID)
		if err != nil {
			return View{}, err
		}
		return newView(items), nil
	}
	return live.Open(ctx, load, s.signals(s.store.Collection(), notificationstore.WatchPipeline(a.UID)), s.log)
}

func (s *Service) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	a, err := actor.Require(ctx)
	if err != nil {
		return err
	}
	return translate(s.store.MarkRead(ctx, id, a.UID))
}

func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return 0, err
	}
	return s.store.MarkAllRead(ctx, a.UID)
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	a, err := actor.Require(ctx)
	if err != nil {
		return err
	}
	return translate(s.store.Delete(ctx, id, a.UID))
}

// ClearAll removes every notification the actor has received.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.store.ClearAll(ctx, a.UID)
	if err == nil {
		s.log.Debug("notifications cleared", zap.String("uid", a.UID), zap.Int64("deleted", n))
	}
	return n, err
}

func translate(err error) error {
	if errors.Is(err, notificationstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
