// Package fanout turns domain events into per-recipient notification
// records.
//
// Every event resolves a recipient set that never contains the acting user.
// Missing groups, prayers and profiles resolve to nobody rather than to an
// error. Records for one event are written as a single unordered batch; a
// partial failure is logged and the records that made it are kept.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	groupstore "github.com/dalemusser/prayerodyssey/internal/app/store/groups"
	notificationstore "github.com/dalemusser/prayerodyssey/internal/app/store/notifications"
	prayerstore "github.com/dalemusser/prayerodyssey/internal/app/store/prayers"
	userstore "github.com/dalemusser/prayerodyssey/internal/app/store/users"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// FallbackSenderName is shown when the sender has no display name.
const FallbackSenderName = "Someone"

var records = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "prayerodyssey",
	Subsystem: "fanout",
	Name:      "records_total",
	Help:      "Notification records written by the fan-out engine, by type and result.",
}, []string{"type", "result"})

type Engine struct {
	notes   *notificationstore.Store
	groups  *groupstore.Store
	prayers *prayerstore.Store
	users   *userstore.Store
	sink    trigger.Sink
	log     *zap.Logger
}

// New builds an engine over db. sink is told about every record written; pass
// trigger.Nop{} when a change-stream watcher observes the notifications
// collection instead.
func New(db *mongo.Database, sink trigger.Sink, log *zap.Logger) *Engine {
	if sink == nil {
		sink = trigger.Nop{}
	}
	return &Engine{
		notes:   notificationstore.New(db),
		groups:  groupstore.New(db),
		prayers: prayerstore.New(db),
		users:   userstore.New(db),
		sink:    sink,
		log:     log,
	}
}

// PrayerShared notifies members of groupIDs that a prayer was shared with
// them.
func (e *Engine) PrayerShared(ctx context.Context, a actor.Actor, prayerID primitive.ObjectID, summary string, groupIDs []primitive.ObjectID) (int, error) {
	return e.toGroups(ctx, a, models.NotifPrayerShared, prayerID, summary, groupIDs)
}

// PrayerAnswered notifies members of groupIDs that a prayer was answered.
func (e *Engine) PrayerAnswered(ctx context.Context, a actor.Actor, prayerID primitive.ObjectID, summary string, groupIDs []primitive.ObjectID) (int, error) {
	return e.toGroups(ctx, a, models.NotifPrayerAnswered, prayerID, summary, groupIDs)
}

func (e *Engine) toGroups(ctx context.Context, a actor.Actor, typ string, prayerID primitive.ObjectID, summary string, groupIDs []primitive.ObjectID) (int, error) {
	if len(groupIDs) == 0 {
		return 0, nil
	}
	rcpts, err := e.recipients(ctx, groupIDs, a.UID)
	if err != nil {
		return 0, fmt.Errorf("%s recipients: %w", typ, err)
	}
	if len(rcpts) == 0 {
		return 0, nil
	}

	pid := prayerID
	return e.emit(ctx, rcpts, models.Notification{
		SenderID:      a.UID,
		SenderName:    e.senderName(ctx, a.UID, a.DisplayName),
		Type:          typ,
		PrayerID:      &pid,
		PrayerSummary: summary,
	})
}

// PrayerUpdateCreated notifies everyone the parent prayer is shared with,
// except the update's author. A member of several of those groups gets one
// record.
func (e *Engine) PrayerUpdateCreated(ctx context.Context, prayerID primitive.ObjectID, authorID string) (int, error) {
	p, err := e.prayers.Get(ctx, prayerID)
	if err != nil {
		if errors.Is(err, prayerstore.ErrNotFound) {
			e.log.Info("fanout: update on missing prayer", zap.String("prayer_id", prayerID.Hex()))
			return 0, nil
		}
		return 0, fmt.Errorf("load prayer: %w", err)
	}
	if len(p.SharedWith) == 0 {
		return 0, nil
	}

	rcpts, err := e.recipients(ctx, p.SharedWith, authorID)
	if err != nil {
		return 0, fmt.Errorf("prayer_update recipients: %w", err)
	}
	if len(rcpts) == 0 {
		return 0, nil
	}

	pid := p.ID
	return e.emit(ctx, rcpts, models.Notification{
		SenderID:      authorID,
		SenderName:    e.senderName(ctx, authorID, ""),
		Type:          models.NotifPrayerUpdate,
		PrayerID:      &pid,
		PrayerSummary: p.Summary,
	})
}

// OnPrayerUpdateCreated is the trigger handler for
// prayers/{prayerId}/updates/{id}.
func (e *Engine) OnPrayerUpdateCreated(ctx context.Context, ev trigger.Event) error {
	var u models.PrayerUpdate
	if err := ev.Decode(&u); err != nil {
		return fmt.Errorf("decode prayer update: %w", err)
	}
	prayerID := u.PrayerID
	if hex := ev.Params["prayerId"]; hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return fmt.Errorf("prayer id %q: %w", hex, err)
		}
		prayerID = id
	}
	n, err := e.PrayerUpdateCreated(ctx, prayerID, u.AuthorID)
	if err != nil {
		return err
	}
	e.log.Info("fanout: prayer update notified",
		zap.String("prayer_id", prayerID.Hex()),
		zap.String("update_id", ev.Params["id"]),
		zap.Int("recipients", n))
	return nil
}

// PrayerReaction notifies the prayer's owner that someone prayed for it,
// unless the actor is the owner.
func (e *Engine) PrayerReaction(ctx context.Context, a actor.Actor, prayerID primitive.ObjectID, ownerID, summary string) (int, error) {
	if ownerID == "" || ownerID == a.UID {
		return 0, nil
	}
	pid := prayerID
	return e.emit(ctx, []string{ownerID}, models.Notification{
		SenderID:      a.UID,
		SenderName:    e.senderName(ctx, a.UID, a.DisplayName),
		Type:          models.NotifPrayerReaction,
		PrayerID:      &pid,
		PrayerSummary: summary,
	})
}

// GroupInvite notifies each invitee, except the actor, that they were
// invited to a group.
func (e *Engine) GroupInvite(ctx context.Context, a actor.Actor, groupID primitive.ObjectID, groupName string, invitees []string) (int, error) {
	set := make(map[string]struct{}, len(invitees))
	for _, uid := range invitees {
		if uid == "" || uid == a.UID {
			continue
		}
		set[uid] = struct{}{}
	}
	if len(set) == 0 {
		return 0, nil
	}

	gid := groupID
	return e.emit(ctx, sortedKeys(set), models.Notification{
		SenderID:   a.UID,
		SenderName: e.senderName(ctx, a.UID, a.DisplayName),
		Type:       models.NotifGroupInvite,
		GroupID:    &gid,
		GroupName:  groupName,
	})
}

// recipients is the union of the members of groupIDs minus exclude.
func (e *Engine) recipients(ctx context.Context, groupIDs []primitive.ObjectID, exclude string) ([]string, error) {
	members, err := e.groups.Members(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	set := map[string]struct{}{}
	for _, ms := range members {
		for _, uid := range ms {
			if uid == "" || uid == exclude {
				continue
			}
			set[uid] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

func (e *Engine) senderName(ctx context.Context, uid, fallback string) string {
	name, err := e.users.DisplayName(ctx, uid)
	if err != nil {
		e.log.Warn("fanout: load sender name", zap.String("uid", uid), zap.Error(err))
	}
	if name != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return FallbackSenderName
}

// emit writes one copy of tmpl per receiver.
func (e *Engine) emit(ctx context.Context, receivers []string, tmpl models.Notification) (int, error) {
	ns := make([]models.Notification, len(receivers))
	for i, uid := range receivers {
		n := tmpl
		n.ReceiverID = uid
		ns[i] = n
	}

	written, err := e.notes.CreateMany(ctx, ns)
	for _, n := range written {
		e.sink.Created(notificationstore.Path(n), n)
	}
	records.WithLabelValues(tmpl.Type, "written").Add(float64(len(written)))

	if err != nil {
		failed := len(ns) - len(written)
		records.WithLabelValues(tmpl.Type, "failed").Add(float64(failed))
		e.log.Error("fanout: partial delivery",
			zap.String("type", tmpl.Type),
			zap.Int("recipients", len(ns)),
			zap.Int("written", len(written)),
			zap.Int("failed", failed),
			zap.Error(err))
		return len(written), err
	}

	e.log.Debug("fanout: records written",
		zap.String("type", tmpl.Type),
		zap.Int("recipients", len(written)))
	return len(written), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
