package prayers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	"github.com/dalemusser/prayerodyssey/internal/app/features/prayers"
	"github.com/dalemusser/prayerodyssey/internal/app/services/prayersvc"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fanout"
	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/dalemusser/prayerodyssey/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, db *mongo.Database) http.Handler {
	t.Helper()
	log := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, log)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	svc := prayersvc.New(db, fanout.New(db, trigger.Nop{}, log), trigger.Nop{}, live.Polling(20*time.Millisecond), log)
	h := prayers.NewHandler(svc, uierrors.NewErrorLogger(log), log)

	r := chi.NewRouter()
	r.Mount("/prayers", prayers.Routes(h, sm))
	return r
}

func do(t *testing.T, h http.Handler, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req = auth.WithTestUser(req, actor.Actor{UID: uid, DisplayName: "User " + uid})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRoutes_RequireSignIn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	rec := do(t, h, http.MethodGet, "/prayers/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	rec := do(t, h, http.MethodPost, "/prayers/", "U", map[string]string{"summary": "healing"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[models.Prayer](t, rec)
	if created.OwnerID != "U" || created.Status != models.PrayerActive {
		t.Errorf("unexpected prayer: %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/prayers/", "U", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rec.Code)
	}
	list := decode[[]models.Prayer](t, rec)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list: got %+v", list)
	}

	// Another user sees nothing of their own.
	rec = do(t, h, http.MethodGet, "/prayers/", "A", nil)
	if got := decode[[]models.Prayer](t, rec); len(got) != 0 {
		t.Errorf("expected empty list for A, got %d", len(got))
	}
}

func TestCreate_EmptySummaryIsBadRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	rec := do(t, h, http.MethodPost, "/prayers/", "U", map[string]string{"summary": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGet_InvalidAndMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	if rec := do(t, h, http.MethodGet, "/prayers/not-an-id", "U", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/prayers/000000000000000000000000", "U", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing id: got %d", rec.Code)
	}
}

func TestSharedFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Family", "U", "A")
	fixtures.CreateUser(ctx, "A", "Ann")
	p := fixtures.CreatePrayer(ctx, "U", "travel")

	// Only the owner can change sharing.
	body := map[string]interface{}{"groupIds": []string{g.ID.Hex()}}
	if rec := do(t, h, http.MethodPut, "/prayers/"+p.ID.Hex()+"/sharing", "A", body); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner sharing: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec := do(t, h, http.MethodPut, "/prayers/"+p.ID.Hex()+"/sharing", "U", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("sharing status: got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/prayers/shared", "A", nil)
	shared := decode[[]models.Prayer](t, rec)
	if len(shared) != 1 || shared[0].ID != p.ID {
		t.Fatalf("shared for A: got %+v", shared)
	}

	// A can now see it but still cannot archive it.
	if rec := do(t, h, http.MethodPost, "/prayers/"+p.ID.Hex()+"/archive", "A", nil); rec.Code != http.StatusForbidden {
		t.Errorf("archive by A: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = do(t, h, http.MethodPost, "/prayers/"+p.ID.Hex()+"/pray", "A", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pray status: got %d", rec.Code)
	}
	if got := decode[models.Prayer](t, rec); got.PrayedCount != 1 {
		t.Errorf("PrayedCount: got %d, want 1", got.PrayedCount)
	}
}

func TestSharing_ForeignGroupIsForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	other := fixtures.CreateGroup(ctx, "Strangers", "X")
	p := fixtures.CreatePrayer(ctx, "U", "travel")

	body := map[string]interface{}{"groupIds": []string{other.ID.Hex()}}
	if rec := do(t, h, http.MethodPut, "/prayers/"+p.ID.Hex()+"/sharing", "U", body); rec.Code != http.StatusForbidden {
		t.Errorf("sharing with a foreign group: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	create := map[string]interface{}{"summary": "s", "sharedWith": []string{other.ID.Hex()}}
	if rec := do(t, h, http.MethodPost, "/prayers", "U", create); rec.Code != http.StatusForbidden {
		t.Errorf("create shared with a foreign group: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSharing_MissingPrayerIsNoContent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	body := map[string]interface{}{"groupIds": []string{}}
	rec := do(t, h, http.MethodPut, "/prayers/000000000000000000000000/sharing", "U", body)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestUpdatesCRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreatePrayer(ctx, "U", "job")
	base := "/prayers/" + p.ID.Hex() + "/updates"

	rec := do(t, h, http.MethodPost, base, "U", map[string]string{"content": "interview went well"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status: got %d body=%s", rec.Code, rec.Body.String())
	}
	u := decode[models.PrayerUpdate](t, rec)

	rec = do(t, h, http.MethodPut, base+"/"+u.ID.Hex(), "U", map[string]string{"content": "got the offer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status: got %d", rec.Code)
	}
	if got := decode[models.PrayerUpdate](t, rec); got.Content != "got the offer" {
		t.Errorf("Content: got %q", got.Content)
	}

	if rec := do(t, h, http.MethodPost, base, "U", map[string]string{"content": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty content: got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, base, "U", nil)
	if got := decode[[]models.PrayerUpdate](t, rec); len(got) != 1 {
		t.Fatalf("list: got %d updates", len(got))
	}

	if rec := do(t, h, http.MethodDelete, base+"/"+u.ID.Hex(), "U", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, base+"/"+u.ID.Hex(), "U", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAnsweredAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreatePrayer(ctx, "U", "exam")

	rec := do(t, h, http.MethodPost, "/prayers/"+p.ID.Hex()+"/answered", "U", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("answered status: got %d", rec.Code)
	}
	if got := decode[models.Prayer](t, rec); got.Status != models.PrayerAnswered {
		t.Errorf("Status: got %q", got.Status)
	}

	if rec := do(t, h, http.MethodDelete, "/prayers/"+p.ID.Hex(), "U", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/prayers/"+p.ID.Hex(), "U", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", rec.Code)
	}
}
