package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Provider{},
		&models.Shift{},
		&models.SchedulingRule{},
		&models.Conflict{},
		&models.ResolutionAttempt{},
		&models.SwapRequest{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	router, err := NewRouter(StartOpts{DB: db, Hub: broadcast.NewHub(broadcast.Opts{})})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func seedProvider(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	p := models.Provider{ID: id, Name: "Dr. " + id, Type: "physician", TargetDays: 10}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed provider %s: %v", id, err)
	}
}

func seedShift(t *testing.T, db *gorm.DB, id, providerID, start, end string) {
	t.Helper()
	parse := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parse day %q: %v", s, err)
		}
		return d
	}
	s := models.Shift{
		ID:         id,
		ProviderID: providerID,
		StartDate:  parse(start),
		EndDate:    parse(end),
		Status:     models.ShiftConfirmed,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed shift %s: %v", id, err)
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestNewRouter_NilDB(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Error("expected error for nil db")
	}
}

func TestCreateShift_CleanSchedule(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")

	w := doJSON(t, router, http.MethodPost, "/api/shifts", map[string]string{
		"providerId": "prov-a",
		"startDate":  "2024-06-01",
		"endDate":    "2024-06-05",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	shift := body["shift"].(map[string]any)
	if shift["ProviderID"] != "prov-a" {
		t.Errorf("shift = %+v", shift)
	}
}

func TestCreateShift_ValidationBeforeDetection(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")

	cases := []map[string]string{
		{"startDate": "2024-06-01", "endDate": "2024-06-05"},                             // no provider
		{"providerId": "prov-a", "endDate": "2024-06-05"},                                // no start
		{"providerId": "prov-a", "startDate": "bogus", "endDate": "2024-06-05"},          // bad date
		{"providerId": "prov-a", "startDate": "2024-06-05", "endDate": "2024-06-01"},     // inverted
	}
	for i, body := range cases {
		w := doJSON(t, router, http.MethodPost, "/api/shifts", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400: %s", i, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, router, http.MethodPost, "/api/shifts", map[string]string{
		"providerId": "prov-ghost", "startDate": "2024-06-01", "endDate": "2024-06-05",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown provider: status = %d, want 404", w.Code)
	}
}

func TestCreateShift_OverlapRejectedWith409(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodPost, "/api/shifts", map[string]string{
		"providerId": "prov-a",
		"startDate":  "2024-06-04",
		"endDate":    "2024-06-08",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "overlap") {
		t.Errorf("body = %s, want conflict payload", w.Body.String())
	}

	// The write must have been blocked.
	var n int64
	db.Model(&models.Shift{}).Count(&n)
	if n != 1 {
		t.Errorf("shifts = %d, want the write blocked", n)
	}
}

func TestCreateShift_ForcePersistsConflict(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodPost, "/api/shifts?force=true", map[string]string{
		"providerId": "prov-a",
		"startDate":  "2024-06-04",
		"endDate":    "2024-06-08",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	conflicts, err := store.ListConflicts(db, models.ConflictDetected)
	if err != nil {
		t.Fatalf("ListConflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Type != models.ConflictOverlap {
		t.Errorf("conflicts = %+v, want one overlap opened", conflicts)
	}
}

func TestDetect_ReadOnly(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodPost, "/api/detect", map[string]string{
		"providerId": "prov-a",
		"startDate":  "2024-06-04",
		"endDate":    "2024-06-08",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["blocking"] != true {
		t.Errorf("body = %v, want blocking", body)
	}

	var n int64
	db.Model(&models.Conflict{}).Count(&n)
	if n != 0 {
		t.Errorf("conflicts = %d, detect must not persist", n)
	}
}

func TestUpdateShift_ExcludesOwnID(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	// Shrinking the same shift must not conflict with itself.
	w := doJSON(t, router, http.MethodPut, "/api/shifts/shf-1", map[string]string{
		"providerId": "prov-a",
		"startDate":  "2024-06-02",
		"endDate":    "2024-06-05",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	shift, _ := store.GetShift(db, "shf-1")
	if !shift.StartDate.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start date = %s, want updated", shift.StartDate)
	}
}

func TestDeleteShift_Retires(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodDelete, "/api/shifts/shf-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	shift, _ := store.GetShift(db, "shf-1")
	if shift.Status != models.ShiftInactive {
		t.Errorf("status = %s, want inactive (never hard-deleted)", shift.Status)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/shifts/shf-ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestResolveConflict_DefaultsToRuleDispatch(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedProvider(t, db, "prov-b")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	rule := models.SchedulingRule{
		Name: "reassign overlaps", ConflictType: models.ConflictOverlap,
		Strategy: models.StrategyAutoReassign, IsActive: true,
	}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	conflict := &models.Conflict{
		Type:        models.ConflictOverlap,
		ShiftIDs:    models.EncodeStrings([]string{"shf-1"}),
		ProviderIDs: models.EncodeStrings([]string{"prov-a"}),
	}
	if err := store.InsertConflict(db, conflict); err != nil {
		t.Fatalf("seed conflict: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/conflicts/%s/resolve", conflict.ID), map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["successful"] != true {
		t.Errorf("outcome = %v, want success via the overlap rule", body)
	}

	shift, _ := store.GetShift(db, "shf-1")
	if shift.ProviderID != "prov-b" {
		t.Errorf("shift provider = %s, want reassigned", shift.ProviderID)
	}
}

func TestResolveConflict_BadInputs(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/conflicts/cfl-1/resolve", map[string]string{
		"strategy": "wish_harder",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown strategy", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/conflicts/cfl-ghost/resolve", map[string]string{
		"strategy": "notify_admin",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing conflict", w.Code)
	}
}

func TestConflictAuditEndpoints(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	conflict := &models.Conflict{
		Type:     models.ConflictOverlap,
		ShiftIDs: models.EncodeStrings([]string{"shf-1"}),
	}
	if err := store.InsertConflict(db, conflict); err != nil {
		t.Fatalf("seed conflict: %v", err)
	}
	if err := store.InsertAttempt(db, &models.ResolutionAttempt{
		ConflictID: conflict.ID, Strategy: models.StrategyNotifyAdmin, Successful: true,
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/conflicts?status=detected", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), conflict.ID) {
		t.Errorf("list body = %s", w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/conflicts?status=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/conflicts/"+conflict.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "attempts") {
		t.Errorf("get status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/conflicts/"+conflict.ID+"/attempts", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "notify_admin") {
		t.Errorf("attempts status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRecommendations(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedProvider(t, db, "prov-b")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodGet, "/api/shifts/shf-1/recommendations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	recs := body["recommendations"].([]any)
	if len(recs) != 1 {
		t.Fatalf("recommendations = %v", recs)
	}
	top := recs[0].(map[string]any)
	if top["providerId"] != "prov-b" {
		t.Errorf("top = %v", top)
	}
}

func TestSwapEndpoints_FullLifecycle(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedProvider(t, db, "prov-b")
	seedShift(t, db, "shf-1", "prov-a", "2024-06-01", "2024-06-05")

	w := doJSON(t, router, http.MethodPost, "/api/shifts/shf-1/swaps", map[string]string{
		"recipientId": "prov-b",
		"reason":      "vacation",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	swapID := created["ID"].(string)

	shift, _ := store.GetShift(db, "shf-1")
	if shift.Status != models.ShiftPendingSwap {
		t.Errorf("shift status = %s, want pending_swap", shift.Status)
	}

	w = doJSON(t, router, http.MethodGet, "/api/swaps?providerId=prov-b", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), swapID) {
		t.Errorf("list status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/swaps/"+swapID+"/accept", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept status = %d: %s", w.Code, w.Body.String())
	}

	shift, _ = store.GetShift(db, "shf-1")
	if shift.ProviderID != "prov-b" || shift.Status != models.ShiftSwapped {
		t.Errorf("shift = %+v, want swapped to prov-b", shift)
	}

	// Accepting twice fails: the request is terminal.
	w = doJSON(t, router, http.MethodPost, "/api/swaps/"+swapID+"/accept", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second accept status = %d, want 404", w.Code)
	}
}

func TestReconcileEndpoints(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)
	seedProvider(t, db, "prov-a")
	seedShift(t, db, "shf-local", "prov-a", "2024-06-01", "2024-06-05")
	ext := "q-1"
	imp := models.Shift{
		ID: "shf-imp", ProviderID: "prov-a",
		StartDate: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC),
		Status:    models.ShiftConfirmed, Source: models.SourceImported, ExternalID: &ext,
	}
	if err := db.Create(&imp).Error; err != nil {
		t.Fatalf("seed imported shift: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/reconcile/pairs", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "shf-imp") {
		t.Fatalf("pairs status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/reconcile/batch", map[string]string{
		"choice": "keep-local-all",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch status = %d: %s", w.Code, w.Body.String())
	}

	shift, _ := store.GetShift(db, "shf-imp")
	if shift.Status != models.ShiftInactive {
		t.Errorf("imported shift status = %s, want inactive", shift.Status)
	}

	w = doJSON(t, router, http.MethodPost, "/api/reconcile/batch", map[string]string{
		"choice": "keep-everything",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid choice status = %d, want 400", w.Code)
	}
}

func TestSync_Unconfigured(t *testing.T) {
	db := testDB(t)
	router := testRouter(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/sync", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a syncer", w.Code)
	}
}

func TestWebSocket_HandshakeAndBroadcast(t *testing.T) {
	db := testDB(t)
	hub := broadcast.NewHub(broadcast.Opts{})
	router, err := NewRouter(StartOpts{DB: db, Hub: hub})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var handshake broadcast.Envelope
	if err := conn.ReadJSON(&handshake); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if handshake.Type != broadcast.EventConnected {
		t.Fatalf("handshake type = %s, want connected", handshake.Type)
	}

	hub.Broadcast(broadcast.NewEvent(broadcast.EventShiftCreated, map[string]any{"shiftId": "shf-1"}))

	var evt broadcast.Envelope
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != broadcast.EventShiftCreated {
		t.Errorf("event type = %s, want shift_created", evt.Type)
	}
}
