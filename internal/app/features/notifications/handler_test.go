package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	"github.com/dalemusser/prayerodyssey/internal/app/features/notifications"
	"github.com/dalemusser/prayerodyssey/internal/app/services/notificationsvc"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
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
	svc := notificationsvc.New(db, live.Polling(20*time.Millisecond), log)
	r := chi.NewRouter()
	r.Mount("/notifications", notifications.Routes(notifications.NewHandler(svc, uierrors.NewErrorLogger(log), log), sm))
	return r
}

func do(h http.Handler, method, path, uid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if uid != "" {
		req = auth.WithTestUser(req, actor.Actor{UID: uid})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func view(t *testing.T, h http.Handler, uid string) notificationsvc.View {
	t.Helper()
	rec := do(h, http.MethodGet, "/notifications/", uid)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rec.Code)
	}
	var v notificationsvc.View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestListReadDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	a := fixtures.CreateNotification(ctx, "R", "S", models.NotifPrayerReaction, now.Add(-time.Minute))
	b := fixtures.CreateNotification(ctx, "R", "S", models.NotifPrayerUpdate, now)

	v := view(t, h, "R")
	if len(v.Items) != 2 || v.Unread != 2 {
		t.Fatalf("initial view: got %d items, %d unread", len(v.Items), v.Unread)
	}
	if v.Items[0].ID != b.ID {
		t.Errorf("expected newest first")
	}

	if rec := do(h, http.MethodPost, "/notifications/"+a.ID.Hex()+"/read", "R"); rec.Code != http.StatusNoContent {
		t.Fatalf("read status: got %d", rec.Code)
	}
	if v := view(t, h, "R"); v.Unread != 1 {
		t.Errorf("Unread after read: got %d, want 1", v.Unread)
	}

	// Someone else cannot touch R's records.
	if rec := do(h, http.MethodDelete, "/notifications/"+b.ID.Hex(), "X"); rec.Code != http.StatusNotFound {
		t.Errorf("delete by X: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	if rec := do(h, http.MethodPost, "/notifications/read-all", "R"); rec.Code != http.StatusOK {
		t.Fatalf("read-all status: got %d", rec.Code)
	}
	if v := view(t, h, "R"); v.Unread != 0 {
		t.Errorf("Unread after read-all: got %d", v.Unread)
	}

	if rec := do(h, http.MethodDelete, "/notifications/", "R"); rec.Code != http.StatusOK {
		t.Fatalf("clear status: got %d", rec.Code)
	}
	if v := view(t, h, "R"); len(v.Items) != 0 {
		t.Errorf("expected empty list after clear, got %d", len(v.Items))
	}
}

func TestRead_InvalidID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newRouter(t, db)

	if rec := do(h, http.MethodPost, "/notifications/xyz/read", "R"); rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStream_SendsInitialSnapshot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	h := newRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateNotification(ctx, "R", "S", models.NotifGroupInvite, time.Now())

	reqCtx, stop := context.WithTimeout(ctx, 300*time.Millisecond)
	defer stop()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(reqCtx)
	req = auth.WithTestUser(req, actor.Actor{UID: "R"})
	rec := httptest.NewRecorder()

	// Returns once the request context expires.
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: notifications\n") {
		t.Fatalf("missing event line in %q", body)
	}
	if !strings.Contains(body, `"unread":1`) {
		t.Errorf("expected unread count in %q", body)
	}
}
