// Package prayersvc owns prayers and their updates and raises the
// notification events that follow from changing them.
//
// Notification fan-out is best effort. A failed fan-out is logged; it never
// fails or rolls back the mutation that caused it.
package prayersvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/prayerodyssey/internal/app/store/groups"
	prayerstore "github.com/dalemusser/prayerodyssey/internal/app/store/prayers"
	prayerupdatestore "github.com/dalemusser/prayerodyssey/internal/app/store/prayerupdates"
	userstore "github.com/dalemusser/prayerodyssey/internal/app/store/users"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fanout"
	"github.com/dalemusser/prayerodyssey/internal/app/system/htmlsanitize"
	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/app/system/txn"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrForbidden is returned when the actor may see a prayer but not
	// change it.
	ErrForbidden = errors.New("only the owner can change this prayer")
	// ErrNotFound covers both missing prayers and prayers the actor cannot
	// see.
	ErrNotFound = errors.New("prayer not found")
	// ErrNotGroupMember is returned when a prayer would be shared with a
	// group the actor does not belong to.
	ErrNotGroupMember = errors.New("prayers can only be shared with your own groups")
)

type Service struct {
	client  *mongo.Client
	prayers *prayerstore.Store
	updates *prayerupdatestore.Store
	groups  *groupstore.Store
	users   *userstore.Store
	fan     *fanout.Engine
	sink    trigger.Sink
	signals live.Source
	log     *zap.Logger
}

// New builds the service. sink is told about created prayer updates and
// signals drives live views.
func New(db *mongo.Database, fan *fanout.Engine, sink trigger.Sink, signals live.Source, log *zap.Logger) *Service {
	if sink == nil {
		sink = trigger.Nop{}
	}
	return &Service{
		client:  db.Client(),
		prayers: prayerstore.New(db),
		updates: prayerupdatestore.New(db),
		groups:  groupstore.New(db),
		users:   userstore.New(db),
		fan:     fan,
		sink:    sink,
		signals: signals,
		log:     log,
	}
}

// CreateInput is the client payload for a new prayer.
type CreateInput struct {
	Summary     string               `json:"summary"`
	Description string               `json:"description"`
	SharedWith  []primitive.ObjectID `json:"sharedWith"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Prayer{}, err
	}
	shared := uniqueIDs(in.SharedWith)
	if err := s.checkMember(ctx, a, shared); err != nil {
		return models.Prayer{}, err
	}
	if err := s.users.EnsureProfile(ctx, a.UID, a.DisplayName); err != nil {
		return models.Prayer{}, fmt.Errorf("ensure profile: %w", err)
	}

	p, err := s.prayers.Create(ctx, models.Prayer{
		Summary:     htmlsanitize.PlainText(in.Summary),
		Description: htmlsanitize.PlainText(in.Description),
		OwnerID:     a.UID,
		SharedWith:  shared,
	})
	if err != nil {
		return models.Prayer{}, err
	}

	if len(p.SharedWith) > 0 {
		s.notify(ctx, "prayer_shared", func(ctx context.Context) (int, error) {
			return s.fan.PrayerShared(ctx, a, p.ID, p.Summary, p.SharedWith)
		})
	}
	return p, nil
}

// Get returns a prayer the actor owns or that is shared with one of the
// actor's groups.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Prayer{}, err
	}
	return s.visible(ctx, a, id)
}

func (s *Service) visible(ctx context.Context, a actor.Actor, id primitive.ObjectID) (models.Prayer, error) {
	p, err := s.prayers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, prayerstore.ErrNotFound) {
			return models.Prayer{}, ErrNotFound
		}
		return models.Prayer{}, err
	}
	if p.OwnerID == a.UID {
		return p, nil
	}
	if len(p.SharedWith) == 0 {
		return models.Prayer{}, ErrNotFound
	}

	mine, err := s.groups.IDsForUser(ctx, a.UID)
	if err != nil {
		return models.Prayer{}, err
	}
	if intersects(p.SharedWith, mine) {
		return p, nil
	}
	return models.Prayer{}, ErrNotFound
}

// ListMine returns the actor's own prayers, newest first.
func (s *Service) ListMine(ctx context.Context) ([]models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.prayers.ListByOwner(ctx, a.UID)
}

// ListShared returns prayers other users shared with any of the actor's
// groups, newest first.
func (s *Service) ListShared(ctx context.Context) ([]models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.groups.IDsForUser(ctx, a.UID)
	if err != nil {
		return nil, err
	}
	return s.sharedWith(ctx, a.UID, ids)
}

func (s *Service) sharedWith(ctx context.Context, uid string, groupIDs []primitive.ObjectID) ([]models.Prayer, error) {
	all, err := s.prayers.ListSharedWith(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.OwnerID != uid {
			out = append(out, p)
		}
	}
	return out, nil
}

// SubscribeShared streams ListShared. The prayer query restarts whenever
// the actor's group membership changes. The caller must Close the feed.
func (s *Service) SubscribeShared(ctx context.Context) (*live.Feed[[]models.Prayer], error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}

	membership := mongo.Pipeline{{{Key: "$match", Value: bson.M{"$or": bson.A{
		bson.M{"fullDocument.members": a.UID},
		bson.M{"operationType": bson.M{"$in": bson.A{"update", "replace", "delete"}}},
	}}}}}
	groupsFeed, err := live.Open(ctx,
		func(ctx context.Context) ([]primitive.ObjectID, error) { return s.groups.IDsForUser(ctx, a.UID) },
		s.signals(s.groups.Collection(), membership),
		s.log)
	if err != nil {
		return nil, fmt.Errorf("open group feed: %w", err)
	}

	open := func(ctx context.Context, uid string, groupIDs []primitive.ObjectID) (*live.Feed[[]models.Prayer], error) {
		pipeline := mongo.Pipeline{}
		if len(groupIDs) > 0 {
			pipeline = mongo.Pipeline{{{Key: "$match", Value: bson.M{"$or": bson.A{
				bson.M{"fullDocument.sharedWith": bson.M{"$in": groupIDs}},
				bson.M{"operationType": bson.M{"$in": bson.A{"update", "replace", "delete"}}},
			}}}}}
		}
		return live.Open(ctx,
			func(ctx context.Context) ([]models.Prayer, error) { return s.sharedWith(ctx, uid, groupIDs) },
			s.signals(s.prayers.Collection(), pipeline),
			s.log)
	}

	derived := live.Derive(ctx, live.Const(ctx, a.UID), groupsFeed.Updates(), open, s.log)
	go func() {
		<-derived.Done()
		groupsFeed.Close()
	}()
	return derived, nil
}

// UpdateSharing replaces the set of groups a prayer is shared with. Only
// groups that were not already in the set are notified. Updating a prayer
// that does not exist is a no-op and returns a zero Prayer.
func (s *Service) UpdateSharing(ctx context.Context, id primitive.ObjectID, groupIDs []primitive.ObjectID) (models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Prayer{}, err
	}

	cur, err := s.prayers.Get(ctx, id)
	if errors.Is(err, prayerstore.ErrNotFound) {
		s.log.Info("update sharing on missing prayer", zap.String("prayer_id", id.Hex()))
		return models.Prayer{}, nil
	}
	if err != nil {
		return models.Prayer{}, err
	}
	if cur.OwnerID != a.UID {
		return models.Prayer{}, ErrForbidden
	}

	next := uniqueIDs(groupIDs)
	// Groups already in the set may stay after the owner leaves them.
	if err := s.checkMember(ctx, a, subtract(next, cur.SharedWith)); err != nil {
		return models.Prayer{}, err
	}
	before, err := s.prayers.SetSharing(ctx, id, a.UID, next)
	if errors.Is(err, prayerstore.ErrNotFound) {
		return models.Prayer{}, nil
	}
	if err != nil {
		return models.Prayer{}, err
	}

	added := subtract(next, before.SharedWith)
	if len(added) > 0 {
		s.notify(ctx, "prayer_shared", func(ctx context.Context) (int, error) {
			return s.fan.PrayerShared(ctx, a, id, before.Summary, added)
		})
	}

	after := before
	after.SharedWith = next
	return after, nil
}

// MarkAnswered sets the prayer's status to answered and notifies the
// groups it is shared with. Marking an already answered prayer notifies
// nobody.
func (s *Service) MarkAnswered(ctx context.Context, id primitive.ObjectID) (models.Prayer, error) {
	a, _, err := s.owned(ctx, id)
	if err != nil {
		return models.Prayer{}, err
	}

	before, err := s.prayers.SetStatus(ctx, id, a.UID, models.PrayerAnswered)
	if err != nil {
		return models.Prayer{}, s.translate(err)
	}
	p := withStatus(before, models.PrayerAnswered)

	// Only the write that moved the status notifies.
	if before.Status != models.PrayerAnswered && len(p.SharedWith) > 0 {
		s.notify(ctx, "prayer_answered", func(ctx context.Context) (int, error) {
			return s.fan.PrayerAnswered(ctx, a, p.ID, p.Summary, p.SharedWith)
		})
	}
	return p, nil
}

func (s *Service) Archive(ctx context.Context, id primitive.ObjectID) (models.Prayer, error) {
	a, _, err := s.owned(ctx, id)
	if err != nil {
		return models.Prayer{}, err
	}
	before, err := s.prayers.SetStatus(ctx, id, a.UID, models.PrayerArchived)
	if err != nil {
		return models.Prayer{}, s.translate(err)
	}
	return withStatus(before, models.PrayerArchived), nil
}

func withStatus(p models.Prayer, status string) models.Prayer {
	now := time.Now().UTC()
	p.Status = status
	p.UpdatedAt = &now
	return p
}

// Delete removes a prayer and all of its updates.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	a, _, err := s.owned(ctx, id)
	if err != nil {
		return err
	}
	return txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if err := s.prayers.Delete(ctx, id, a.UID); err != nil {
			return s.translate(err)
		}
		_, err := s.updates.DeleteByPrayer(ctx, id)
		return err
	})
}

// Pray records that the actor prayed for a prayer. Repeating it changes
// nothing and notifies nobody.
func (s *Service) Pray(ctx context.Context, id primitive.ObjectID) (models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Prayer{}, err
	}
	if _, err := s.visible(ctx, a, id); err != nil {
		return models.Prayer{}, err
	}

	p, added, err := s.prayers.AddPrayedBy(ctx, id, a.UID)
	if err != nil {
		return models.Prayer{}, s.translate(err)
	}
	if added {
		s.notify(ctx, "prayer_reaction", func(ctx context.Context) (int, error) {
			return s.fan.PrayerReaction(ctx, a, p.ID, p.OwnerID, p.Summary)
		})
	}
	return p, nil
}

// AddUpdate posts an update on a visible prayer. Shared-group members are
// notified through the prayers/{prayerId}/updates/{id} trigger.
func (s *Service) AddUpdate(ctx context.Context, prayerID primitive.ObjectID, content string) (models.PrayerUpdate, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.PrayerUpdate{}, err
	}
	if _, err := s.visible(ctx, a, prayerID); err != nil {
		return models.PrayerUpdate{}, err
	}

	u, err := s.updates.Create(ctx, models.PrayerUpdate{
		PrayerID: prayerID,
		Content:  htmlsanitize.PlainText(content),
		AuthorID: a.UID,
	})
	if err != nil {
		return models.PrayerUpdate{}, err
	}
	s.sink.Created(prayerupdatestore.Path(u), u)
	return u, nil
}

func (s *Service) EditUpdate(ctx context.Context, prayerID, updateID primitive.ObjectID, content string) (models.PrayerUpdate, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.PrayerUpdate{}, err
	}
	if _, err := s.visible(ctx, a, prayerID); err != nil {
		return models.PrayerUpdate{}, err
	}
	return s.updates.SetContent(ctx, prayerID, updateID, htmlsanitize.PlainText(content))
}

func (s *Service) DeleteUpdate(ctx context.Context, prayerID, updateID primitive.ObjectID) error {
	a, err := actor.Require(ctx)
	if err != nil {
		return err
	}
	if _, err := s.visible(ctx, a, prayerID); err != nil {
		return err
	}
	return s.updates.Delete(ctx, prayerID, updateID)
}

func (s *Service) ListUpdates(ctx context.Context, prayerID primitive.ObjectID) ([]models.PrayerUpdate, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(ctx, a, prayerID); err != nil {
		return nil, err
	}
	return s.updates.ListByPrayer(ctx, prayerID)
}

// owned loads a prayer and checks the actor owns it.
func (s *Service) owned(ctx context.Context, id primitive.ObjectID) (actor.Actor, models.Prayer, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return actor.Actor{}, models.Prayer{}, err
	}
	p, err := s.prayers.Get(ctx, id)
	if err != nil {
		return actor.Actor{}, models.Prayer{}, s.translate(err)
	}
	if p.OwnerID != a.UID {
		return actor.Actor{}, models.Prayer{}, ErrForbidden
	}
	return a, p, nil
}

// checkMember returns ErrNotGroupMember unless a belongs to every group in
// groupIDs.
func (s *Service) checkMember(ctx context.Context, a actor.Actor, groupIDs []primitive.ObjectID) error {
	if len(groupIDs) == 0 {
		return nil
	}
	mine, err := s.groups.IDsForUser(ctx, a.UID)
	if err != nil {
		return err
	}
	if len(subtract(groupIDs, mine)) > 0 {
		return ErrNotGroupMember
	}
	return nil
}

func (s *Service) translate(err error) error {
	if errors.Is(err, prayerstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// notify runs a fan-out detached from the caller's cancellation so a client
// that disconnects mid-request does not cut delivery short.
func (s *Service) notify(ctx context.Context, event string, fn func(ctx context.Context) (int, error)) {
	fctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium(), s.log, "fanout "+event)
	defer cancel()

	n, err := fn(fctx)
	if err != nil {
		s.log.Error("fan-out failed", zap.String("event", event), zap.Int("written", n), zap.Error(err))
		return
	}
	s.log.Debug("fan-out done", zap.String("event", event), zap.Int("written", n))
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// subtract returns the ids in a that are not in b.
func subtract(a, b []primitive.ObjectID) []primitive.ObjectID {
	drop := make(map[primitive.ObjectID]struct{}, len(b))
	for _, id := range b {
		drop[id] = struct{}{}
	}
	var out []primitive.ObjectID
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func intersects(a, b []primitive.ObjectID) bool {
	set := make(map[primitive.ObjectID]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
