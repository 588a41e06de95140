// Package groupsvc owns groups and the membership mirrored on user
// profiles.
package groupsvc

import (
	"context"
	"errors"
	"fmt"

	groupstore "github.com/dalemusser/prayerodyssey/internal/app/store/groups"
	userstore "github.com/dalemusser/prayerodyssey/internal/app/store/users"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fanout"
	"github.com/dalemusser/prayerodyssey/internal/app/system/htmlsanitize"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/dalemusser/prayerodyssey/internal/app/system/txn"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("group not found")
	ErrNotMember = errors.New("not a member of this group")
)

type Service struct {
	client *mongo.Client
	groups *groupstore.Store
	users  *userstore.Store
	fan    *fanout.Engine
	log    *zap.Logger
}

func New(db *mongo.Database, fan *fanout.Engine, log *zap.Logger) *Service {
	return &Service{
		client: db.Client(),
		groups: groupstore.New(db),
		users:  userstore.New(db),
		fan:    fan,
		log:    log,
	}
}

// Create makes a group with the actor as its only admin and member and
// records it on the actor's profile.
func (s *Service) Create(ctx context.Context, name, description string) (models.Group, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Group{}, err
	}

	var g models.Group
	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if err := s.users.EnsureProfile(ctx, a.UID, a.DisplayName); err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		created, err := s.groups.Create(ctx, models.Group{
			Name:        htmlsanitize.PlainText(name),
			Description: htmlsanitize.PlainText(description),
			Admins:      []string{a.UID},
			Members:     []string{a.UID},
		})
		if err != nil {
			return err
		}
		if err := s.users.AddGroup(ctx, a.UID, created.ID); err != nil {
			return fmt.Errorf("add group to profile: %w", err)
		}
		g = created
		return nil
	})
	if err != nil {
		return models.Group{}, err
	}

	s.log.Info("group created", zap.String("group_id", g.ID.Hex()), zap.String("uid", a.UID))
	return g, nil
}

// Join adds the actor to a group. Joining twice is harmless.
func (s *Service) Join(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return models.Group{}, err
	}

	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		if err := s.groups.AddMember(ctx, id, a.UID); err != nil {
			return err
		}
		if err := s.users.EnsureProfile(ctx, a.UID, a.DisplayName); err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		return s.users.AddGroup(ctx, a.UID, id)
	})
	if err != nil {
		return models.Group{}, translate(err)
	}
	g, err := s.groups.GetByID(ctx, id)
	return g, translate(err)
}

// ListMine returns the actor's groups ordered by name.
func (s *Service) ListMine(ctx context.Context) ([]models.Group, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.groups.ListForUser(ctx, a.UID)
}

// Get returns any group by id to a signed-in user, so an invite link can
// show what is being joined.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	if _, err := actor.Require(ctx); err != nil {
		return models.Group{}, err
	}
	g, err := s.groups.GetByID(ctx, id)
	return g, translate(err)
}

// Invite sends a group_invite notification to each invitee. Only members
// may invite. Returns the number of invitations written.
func (s *Service) Invite(ctx context.Context, id primitive.ObjectID, invitees []string) (int, error) {
	a, err := actor.Require(ctx)
	if err != nil {
		return 0, err
	}
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return 0, translate(err)
	}
	if !contains(g.Members, a.UID) {
		return 0, ErrNotMember
	}

	fctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium(), s.log, "fanout group_invite")
	defer cancel()
	n, err := s.fan.GroupInvite(fctx, a, g.ID, g.Name, invitees)
	if err != nil {
		s.log.Error("fan-out failed", zap.String("event", "group_invite"), zap.Int("written", n), zap.Error(err))
	}
	return n, nil
}

func translate(err error) error {
	if errors.Is(err, groupstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
