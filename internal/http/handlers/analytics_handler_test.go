package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
	"github.com/tbourn/tg-analytics-gateway/internal/services"
)

// ---------- stubs ----------

type stubAuthSvc struct {
	setup       func(context.Context, string, domain.Credentials) (bool, error)
	requestCode func(context.Context, string, string, *domain.Credentials) (string, error)
	signIn      func(context.Context, string, string, string, string, *domain.Credentials) (*domain.Identity, error)
	current     func(context.Context, string, *domain.Credentials) (*domain.Identity, error)
	logout      func(context.Context, string) (bool, error)
	configured  bool
	authorized  bool
	state       services.AuthState
}

func (s stubAuthSvc) Setup(ctx context.Context, u string, cr domain.Credentials) (bool, error) {
	if s.setup != nil {
		return s.setup(ctx, u, cr)
	}
	return false, nil
}

func (s stubAuthSvc) RequestCode(ctx context.Context, u, p string, cr *domain.Credentials) (string, error) {
	if s.requestCode != nil {
		return s.requestCode(ctx, u, p, cr)
	}
	return "hash", nil
}

func (s stubAuthSvc) SignIn(ctx context.Context, u, p, code, hash string, cr *domain.Credentials) (*domain.Identity, error) {
	if s.signIn != nil {
		return s.signIn(ctx, u, p, code, hash, cr)
	}
	return &domain.Identity{ID: 1, Username: "ada"}, nil
}

func (s stubAuthSvc) CurrentUser(ctx context.Context, u string, cr *domain.Credentials) (*domain.Identity, error) {
	if s.current != nil {
		return s.current(ctx, u, cr)
	}
	return &domain.Identity{ID: 1, Username: "ada", FirstName: "Ada"}, nil
}

func (s stubAuthSvc) Logout(ctx context.Context, u string) (bool, error) {
	if s.logout != nil {
		return s.logout(ctx, u)
	}
	return true, nil
}

func (s stubAuthSvc) Status(context.Context, string) (bool, bool) { return s.configured, s.authorized }

func (s stubAuthSvc) State(string) services.AuthState {
	if s.state == "" {
		return services.StateUnauthenticated
	}
	return s.state
}

type stubAnalyticsSvc struct {
	fetchOne   func(context.Context, string, string, int, *domain.Credentials) (domain.AnalyticsRecord, error)
	fetchBatch func(context.Context, string, []services.BatchItem, *domain.Credentials) (map[string]domain.AnalyticsRecord, error)
	list       func(context.Context, string, int, int) ([]domain.AnalyticsSnapshot, int64, error)
}

func (s stubAnalyticsSvc) FetchOne(ctx context.Context, u, ref string, id int, cr *domain.Credentials) (domain.AnalyticsRecord, error) {
	if s.fetchOne != nil {
		return s.fetchOne(ctx, u, ref, id, cr)
	}
	return domain.AnalyticsRecord{}, nil
}

func (s stubAnalyticsSvc) FetchBatch(ctx context.Context, u string, items []services.BatchItem, cr *domain.Credentials) (map[string]domain.AnalyticsRecord, error) {
	if s.fetchBatch != nil {
		return s.fetchBatch(ctx, u, items, cr)
	}
	return map[string]domain.AnalyticsRecord{}, nil
}

func (s stubAnalyticsSvc) ListSnapshots(ctx context.Context, u string, page, size int) ([]domain.AnalyticsSnapshot, int64, error) {
	if s.list != nil {
		return s.list(ctx, u, page, size)
	}
	return []domain.AnalyticsSnapshot{}, 0, nil
}

type stubDialogSvc struct {
	list func(context.Context, string, *domain.Credentials, int) ([]domain.Dialog, error)
}

func (s stubDialogSvc) List(ctx context.Context, u string, cr *domain.Credentials, limit int) ([]domain.Dialog, error) {
	if s.list != nil {
		return s.list(ctx, u, cr, limit)
	}
	return []domain.Dialog{}, nil
}

func newTestHandlers(a AuthService, an AnalyticsService, d DialogService) *Handlers {
	if a == nil {
		a = stubAuthSvc{}
	}
	if an == nil {
		an = stubAnalyticsSvc{}
	}
	if d == nil {
		d = stubDialogSvc{}
	}
	return New(a, an, d, "tg-analytics-gateway")
}

func do(r http.Handler, method, target, user string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error body: %v (%s)", err, w.Body.String())
	}
	return er
}

// ---------- GET /analytics ----------

func TestGetAnalytics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotRef string
	var gotID int
	var gotCreds *domain.Credentials
	svc := stubAnalyticsSvc{fetchOne: func(_ context.Context, u, ref string, id int, cr *domain.Credentials) (domain.AnalyticsRecord, error) {
		gotRef, gotID, gotCreds = ref, id, cr
		if ref == "missing" {
			return domain.AnalyticsRecord{}, &services.Error{Kind: services.ErrNotFound, Msg: "message not found"}
		}
		return domain.AnalyticsRecord{Views: 10, Reactions: 3}, nil
	}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.GET("/analytics", h.GetAnalytics)

	w := do(r, http.MethodGet, "/analytics?chat_id=-1001234567890&message_id=5&api_id=7&api_hash=abc", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var rec map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("json: %v", err)
	}
	for _, k := range []string{"views", "forwards", "replies", "reactions", "voters"} {
		if _, ok := rec[k]; !ok {
			t.Fatalf("field %q missing in %v", k, rec)
		}
	}
	if gotRef != "-1001234567890" || gotID != 5 || gotCreds == nil || gotCreds.APIID != 7 {
		t.Fatalf("service got ref=%q id=%d creds=%+v", gotRef, gotID, gotCreds)
	}

	// Without credentials the existing client is used.
	w = do(r, http.MethodGet, "/analytics?chat_id=somechannel&message_id=5", "u1", nil)
	if w.Code != http.StatusOK || gotCreds != nil {
		t.Fatalf("no creds: status=%d creds=%+v", w.Code, gotCreds)
	}

	w = do(r, http.MethodGet, "/analytics?chat_id=missing&message_id=1", "u1", nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Message != "message not found" {
		t.Fatalf("not found: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/analytics?chat_id=x&message_id=1&api_id=7", "u1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("partial creds: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/analytics?chat_id=x&message_id=1", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing user: %d", w.Code)
	}

	// user_id query fallback
	w = do(r, http.MethodGet, "/analytics?chat_id=x&message_id=1&user_id=u2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user_id query: %d", w.Code)
	}
}

// ---------- POST /analytics/batch ----------

func TestBatchAnalytics_BodyUnion(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotItems []services.BatchItem
	var gotCreds *domain.Credentials
	svc := stubAnalyticsSvc{fetchBatch: func(_ context.Context, _ string, items []services.BatchItem, cr *domain.Credentials) (map[string]domain.AnalyticsRecord, error) {
		gotItems, gotCreds = items, cr
		out := map[string]domain.AnalyticsRecord{}
		for _, it := range items {
			if it.ChatRef != "" && it.MessageID > 0 {
				out[fmt.Sprint(it.MessageID)] = domain.AnalyticsRecord{Voters: 1}
			}
		}
		return out, nil
	}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.POST("/analytics/batch", h.BatchAnalytics)

	// Object form with string and numeric ids.
	body := []byte(`{"api_id":"12345","api_hash":"h","items":[{"recipientId":"100","messageId":5},{"recipientId":"","messageId":6},{"recipientId":-1001,"messageId":"7"}]}`)
	w := do(r, http.MethodPost, "/analytics/batch", "u1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("object form: %d %s", w.Code, w.Body.String())
	}
	var out map[string]domain.AnalyticsRecord
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out) != 2 || out["5"].Voters != 1 || out["7"].Voters != 1 {
		t.Fatalf("object form result = %+v", out)
	}
	if gotCreds == nil || gotCreds.APIID != 12345 || gotCreds.APIHash != "h" {
		t.Fatalf("creds = %+v", gotCreds)
	}
	if len(gotItems) != 3 || gotItems[2].ChatRef != "-1001" || gotItems[2].MessageID != 7 || gotItems[1].ChatRef != "" {
		t.Fatalf("items = %+v", gotItems)
	}

	// Bare array form; chat_id/message_id aliases; credentials from the query.
	body = []byte(` [{"chat_id":"@chan","message_id":9},{"chat_id":"c","message_id":"abc"}]`)
	w = do(r, http.MethodPost, "/analytics/batch?api_id=3&api_hash=q", "u1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("array form: %d %s", w.Code, w.Body.String())
	}
	if len(gotItems) != 2 || gotItems[0].ChatRef != "@chan" || gotItems[0].MessageID != 9 || gotItems[1].MessageID != 0 {
		t.Fatalf("array items = %+v", gotItems)
	}
	if gotCreds == nil || gotCreds.APIID != 3 {
		t.Fatalf("array creds = %+v", gotCreds)
	}

	// Object form without credentials relies on the existing client.
	w = do(r, http.MethodPost, "/analytics/batch", "u1", []byte(`{"items":[]}`))
	if w.Code != http.StatusOK || gotCreds != nil {
		t.Fatalf("no creds: %d %+v", w.Code, gotCreds)
	}

	for _, bad := range []string{``, `"items"`, `42`, `{"items":`, `{"api_id":1,"items":[]}`, `{"api_id":"x","api_hash":"h","items":[]}`} {
		w = do(r, http.MethodPost, "/analytics/batch", "u1", []byte(bad))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d", bad, w.Code)
		}
	}
}

func TestBatchAnalytics_NonObjectItemsSkipped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotItems []services.BatchItem
	svc := stubAnalyticsSvc{fetchBatch: func(_ context.Context, _ string, items []services.BatchItem, _ *domain.Credentials) (map[string]domain.AnalyticsRecord, error) {
		gotItems = items
		out := map[string]domain.AnalyticsRecord{}
		for _, it := range items {
			if it.ChatRef != "" && it.MessageID > 0 {
				out[fmt.Sprint(it.MessageID)] = domain.AnalyticsRecord{Views: 10}
			}
		}
		return out, nil
	}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.POST("/analytics/batch", h.BatchAnalytics)

	cases := []struct {
		name, target, body string
	}{
		{"object form", "/analytics/batch", `{"items":[{"recipientId":"100","messageId":5},"junk",null,[1],{"recipientId":{},"messageId":6}]}`},
		{"bare array", "/analytics/batch?api_id=3&api_hash=q", `[{"recipientId":"100","messageId":5},7,true]`},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPost, tc.target, "u1", []byte(tc.body))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", tc.name, w.Code, w.Body.String())
		}
		var out map[string]domain.AnalyticsRecord
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if len(out) != 1 || out["5"].Views != 10 {
			t.Fatalf("%s: result = %+v", tc.name, out)
		}
		for i, it := range gotItems[1:] {
			if it.ChatRef != "" && it.MessageID > 0 {
				t.Fatalf("%s: item %d should be skippable, got %+v", tc.name, i+1, it)
			}
		}
	}
}

func TestBatchAnalytics_ClientFailureFailsBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := stubAnalyticsSvc{fetchBatch: func(context.Context, string, []services.BatchItem, *domain.Credentials) (map[string]domain.AnalyticsRecord, error) {
		return nil, &services.Error{Kind: services.ErrAuth, Msg: "Telegram account not authorized; sign in first"}
	}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.POST("/analytics/batch", h.BatchAnalytics)

	w := do(r, http.MethodPost, "/analytics/batch", "u1", []byte(`[{"recipientId":"1","messageId":1}]`))
	if w.Code != http.StatusUnauthorized || decodeError(t, w).Code != ErrCodeUnauthorized {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

// ---------- GET /analytics/snapshots ----------

func newSnapshotDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:snapshot_handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testSnapshotRepo mirrors the router shim.
type testSnapshotRepo struct{}

func (testSnapshotRepo) UpsertSnapshots(ctx context.Context, db *gorm.DB, userID string, recs map[repo.SnapshotKey]domain.AnalyticsRecord) error {
	return repo.UpsertSnapshots(ctx, db, userID, recs)
}

func (testSnapshotRepo) CountSnapshots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSnapshots(ctx, db, userID)
}

func (testSnapshotRepo) ListSnapshotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AnalyticsSnapshot, error) {
	return repo.ListSnapshotsPage(ctx, db, userID, offset, limit)
}

func TestListSnapshots_PaginationAndETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newSnapshotDB(t)
	ctx := context.Background()

	recs := map[repo.SnapshotKey]domain.AnalyticsRecord{}
	for i := 1; i <= 3; i++ {
		recs[repo.SnapshotKey{ChatRef: "chan", MessageID: i}] = domain.AnalyticsRecord{Views: i}
	}
	if err := repo.UpsertSnapshots(ctx, db, "u1", recs); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := &services.AnalyticsService{DB: db, Snapshots: testSnapshotRepo{}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.GET("/analytics/snapshots", h.ListSnapshots)

	w := do(r, http.MethodGet, "/analytics/snapshots?page=1&page_size=2", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp ListSnapshotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Snapshots) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("page = %+v", resp)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/analytics/snapshots", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("If-None-Match: status=%d", w.Code)
	}

	// Other users see nothing.
	w = do(r, http.MethodGet, "/analytics/snapshots", "u2", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Snapshots) != 0 || resp.Pagination.Total != 0 {
		t.Fatalf("u2: %d %+v", w.Code, resp)
	}
}

func TestListSnapshots_ServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := stubAnalyticsSvc{list: func(context.Context, string, int, int) ([]domain.AnalyticsSnapshot, int64, error) {
		return nil, 0, errors.New("disk I/O error")
	}}
	h := newTestHandlers(nil, svc, nil)
	r := gin.New()
	r.GET("/analytics/snapshots", h.ListSnapshots)

	w := do(r, http.MethodGet, "/analytics/snapshots", "u1", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeInternal || er.Message != "internal server error" {
		t.Fatalf("storage error text must not leak: %+v", er)
	}
}

func TestClampPagination(t *testing.T) {
	if p, ps := clampPagination(queryContext("/?page=-5&page_size=9999")); p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	if p, ps := clampPagination(queryContext("/?page=&page_size=0")); p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}
