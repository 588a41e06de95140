package groupsvc_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/prayerodyssey/internal/app/services/groupsvc"
	userstore "github.com/dalemusser/prayerodyssey/internal/app/store/users"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fanout"
	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/dalemusser/prayerodyssey/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(db *mongo.Database) *groupsvc.Service {
	return groupsvc.New(db, fanout.New(db, trigger.Nop{}, zap.NewNop()), zap.NewNop())
}

func TestCreate_ActorIsSoleAdminAndMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	uctx := actor.With(ctx, actor.Actor{UID: "U", DisplayName: "Uma"})
	g, err := svc.Create(uctx, "Wednesday <i>Circle</i>", "weekly")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if g.Name != "Wednesday Circle" {
		t.Errorf("Name: got %q", g.Name)
	}
	if len(g.Admins) != 1 || g.Admins[0] != "U" || len(g.Members) != 1 || g.Members[0] != "U" {
		t.Errorf("expected U as sole admin and member, got admins=%v members=%v", g.Admins, g.Members)
	}

	u, err := userstore.New(db).Get(ctx, "U")
	if err != nil {
		t.Fatalf("Get user failed: %v", err)
	}
	if len(u.Groups) != 1 || u.Groups[0] != g.ID {
		t.Errorf("expected group on profile, got %v", u.Groups)
	}
	if u.DisplayName != "Uma" {
		t.Errorf("DisplayName: got %q", u.DisplayName)
	}
}

func TestCreate_RequiresActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := svc.Create(ctx, "G", ""); !errors.Is(err, actor.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestJoin_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc := newService(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "G", "owner")
	actx := actor.With(ctx, actor.Actor{UID: "A"})

	for i := 0; i < 2; i++ {
		got, err := svc.Join(actx, g.ID)
		if err != nil {
			t.Fatalf("Join %d failed: %v", i, err)
		}
		if len(got.Members) != 2 {
			t.Errorf("Join %d: members=%v", i, got.Members)
		}
	}

	u, _ := userstore.New(db).Get(ctx, "A")
	if len(u.Groups) != 1 {
		t.Errorf("expected one group on profile, got %v", u.Groups)
	}

	mine, err := svc.ListMine(actx)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListMine: got %v, %v", mine, err)
	}
}

func TestJoin_MissingGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := svc.Join(actor.With(ctx, actor.Actor{UID: "A"}), primitive.NewObjectID())
	if !errors.Is(err, groupsvc.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc := newService(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "G", "owner")

	if _, err := svc.Invite(actor.With(ctx, actor.Actor{UID: "outsider"}), g.ID, []string{"x"}); !errors.Is(err, groupsvc.ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}

	n, err := svc.Invite(actor.With(ctx, actor.Actor{UID: "owner"}), g.ID, []string{"x", "y", "owner"})
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 invites, got %d", n)
	}

	count, _ := db.Collection("notifications").CountDocuments(ctx, bson.M{"type": models.NotifGroupInvite, "groupId": g.ID})
	if count != 2 {
		t.Errorf("expected 2 invite records, got %d", count)
	}
}
