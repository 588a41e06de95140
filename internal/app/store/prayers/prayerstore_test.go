package prayerstore_test

import (
	"errors"
	"testing"

	prayerstore "github.com/dalemusser/prayerodyssey/internal/app/store/prayers"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/dalemusser/prayerodyssey/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Prayer{
		Summary:  "test",
		OwnerID:  "u1",
		Status:   models.PrayerAnswered, // ignored
		PrayedBy: []string{"x"},         // ignored
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != models.PrayerActive {
		t.Errorf("Status: got %q, want %q", created.Status, models.PrayerActive)
	}
	if len(created.PrayedBy) != 0 || created.PrayedCount != 0 {
		t.Errorf("expected no reactions on create, got %v / %d", created.PrayedBy, created.PrayedCount)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Summary != "test" || got.OwnerID != "u1" {
		t.Errorf("unexpected prayer: %+v", got)
	}
	if got.SharedWith == nil {
		t.Error("expected SharedWith to be an empty slice, got nil")
	}

	if _, err := store.Get(ctx, primitive.NewObjectID()); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Create_EmptySummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Prayer{OwnerID: "u1"}); !errors.Is(err, prayerstore.ErrEmptySummary) {
		t.Errorf("expected ErrEmptySummary, got %v", err)
	}
}

func TestStore_ListSharedWith(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1 := primitive.NewObjectID()
	g2 := primitive.NewObjectID()
	fixtures.CreatePrayer(ctx, "u1", "one", g1)
	fixtures.CreatePrayer(ctx, "u2", "two", g1, g2)
	fixtures.CreatePrayer(ctx, "u3", "private")

	got, err := store.ListSharedWith(ctx, []primitive.ObjectID{g1, g2})
	if err != nil {
		t.Fatalf("ListSharedWith failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 prayers (no duplicates), got %d", len(got))
	}

	none, err := store.ListSharedWith(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty result for no groups, got %v, %v", none, err)
	}

	mine, err := store.ListByOwner(ctx, "u3")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(mine) != 1 || mine[0].Summary != "private" {
		t.Errorf("unexpected ListByOwner result: %+v", mine)
	}
}

func TestStore_SetSharing_ReturnsPrevious(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1 := primitive.NewObjectID()
	g2 := primitive.NewObjectID()
	p := fixtures.CreatePrayer(ctx, "owner", "test", g1)

	before, err := store.SetSharing(ctx, p.ID, "owner", []primitive.ObjectID{g1, g2})
	if err != nil {
		t.Fatalf("SetSharing failed: %v", err)
	}
	if len(before.SharedWith) != 1 || before.SharedWith[0] != g1 {
		t.Errorf("expected previous sharing [g1], got %v", before.SharedWith)
	}

	after, _ := store.Get(ctx, p.ID)
	if len(after.SharedWith) != 2 {
		t.Errorf("expected 2 groups after update, got %v", after.SharedWith)
	}
	if after.UpdatedAt == nil {
		t.Error("expected UpdatedAt to be set")
	}

	if _, err := store.SetSharing(ctx, p.ID, "someone-else", nil); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-owner, got %v", err)
	}
}

func TestStore_SetStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreatePrayer(ctx, "owner", "test")

	before, err := store.SetStatus(ctx, p.ID, "owner", models.PrayerAnswered)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if before.Status != models.PrayerActive {
		t.Errorf("previous Status: got %q, want %q", before.Status, models.PrayerActive)
	}

	again, err := store.SetStatus(ctx, p.ID, "owner", models.PrayerAnswered)
	if err != nil {
		t.Fatalf("SetStatus (repeat) failed: %v", err)
	}
	if again.Status != models.PrayerAnswered {
		t.Errorf("previous Status on repeat: got %q", again.Status)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.PrayerAnswered || got.UpdatedAt == nil {
		t.Errorf("stored prayer: status %q, updatedAt %v", got.Status, got.UpdatedAt)
	}

	if _, err := store.SetStatus(ctx, p.ID, "someone-else", models.PrayerArchived); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-owner, got %v", err)
	}
}

func TestStore_AddPrayedBy_CountFollowsSet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreatePrayer(ctx, "owner", "test")

	_, added, err := store.AddPrayedBy(ctx, p.ID, "a")
	if err != nil {
		t.Fatalf("AddPrayedBy failed: %v", err)
	}
	if !added {
		t.Error("expected first reaction to be added")
	}

	again, added, err := store.AddPrayedBy(ctx, p.ID, "a")
	if err != nil {
		t.Fatalf("AddPrayedBy (repeat) failed: %v", err)
	}
	if added {
		t.Error("expected repeat reaction to report added=false")
	}
	if again.PrayedCount != 1 {
		t.Errorf("returned PrayedCount: got %d, want 1", again.PrayedCount)
	}

	if _, _, err := store.AddPrayedBy(ctx, p.ID, "b"); err != nil {
		t.Fatalf("AddPrayedBy failed: %v", err)
	}

	got, _ := store.Get(ctx, p.ID)
	if got.PrayedCount != len(got.PrayedBy) || got.PrayedCount != 2 {
		t.Errorf("expected prayedCount == |prayedBy| == 2, got %d / %v", got.PrayedCount, got.PrayedBy)
	}

	if _, _, err := store.AddPrayedBy(ctx, primitive.NewObjectID(), "a"); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prayerstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreatePrayer(ctx, "owner", "test")

	if err := store.Delete(ctx, p.ID, "intruder"); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-owner delete, got %v", err)
	}
	if err := store.Delete(ctx, p.ID, "owner"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, p.ID); !errors.Is(err, prayerstore.ErrNotFound) {
		t.Errorf("expected prayer to be gone, got %v", err)
	}
}
