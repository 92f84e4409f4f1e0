package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.AuditEntry{},
		&models.PendingAction{},
		&models.ConversationThread{},
		&models.ConversationMessage{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	auditLog, err := audit.NewLogger(audit.LoggerOpts{DB: db, LogContent: true})
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	router, err := NewRouter(db, auditLog)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router, db
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return w, body
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(nil, nil); err == nil {
		t.Fatal("expected error for missing db")
	}
	db := openTestDB(t)
	if _, err := NewRouter(db, nil); err == nil {
		t.Fatal("expected error for missing audit logger")
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := get(t, router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if string(body["status"]) != `"ok"` {
		t.Errorf("status body = %s", body["status"])
	}
}

func TestAudit_Filters(t *testing.T) {
	router, db := newTestRouter(t)
	seed := []models.AuditEntry{
		{Kind: models.AuditMessage, UserID: "U1", Payload: "hello"},
		{Kind: models.AuditToolExec, UserID: "U1", Detail: "send_email"},
		{Kind: models.AuditMessage, UserID: "U2", Payload: "hi"},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w, body := get(t, router, "/api/audit?user=U1&kind="+models.AuditMessage)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var entries []models.AuditEntry
	if err := json.Unmarshal(body["entries"], &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Payload != "hello" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestAudit_BadLimit(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := get(t, router, "/api/audit?limit=lots")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestActions_LiveOnly(t *testing.T) {
	router, db := newTestRouter(t)
	now := time.Now()
	seed := []models.PendingAction{
		{ID: uuid.NewString(), UserID: "U1", ThreadID: "T1", ToolName: "send_email",
			Args: "{}", State: models.ActionPending, ExpiresAt: now.Add(5 * time.Minute)},
		{ID: uuid.NewString(), UserID: "U1", ThreadID: "T1", ToolName: "create_task",
			Args: "{}", State: models.ActionPending, ExpiresAt: now.Add(-time.Minute)},
		{ID: uuid.NewString(), UserID: "U1", ThreadID: "T1", ToolName: "create_calendar_event",
			Args: "{}", State: models.ActionConfirmed, ExpiresAt: now.Add(5 * time.Minute)},
		{ID: uuid.NewString(), UserID: "U2", ThreadID: "T9", ToolName: "send_email",
			Args: "{}", State: models.ActionPending, ExpiresAt: now.Add(5 * time.Minute)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w, body := get(t, router, "/api/actions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var actions []ActionRow
	if err := json.Unmarshal(body["actions"], &actions); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("live actions = %d, want 2 (expired and resolved excluded)", len(actions))
	}

	_, body = get(t, router, "/api/actions?user=U2")
	if err := json.Unmarshal(body["actions"], &actions); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	if len(actions) != 1 || actions[0].UserID != "U2" {
		t.Errorf("filtered actions = %+v", actions)
	}
}

func TestConversations(t *testing.T) {
	router, db := newTestRouter(t)
	thread := models.ConversationThread{
		UserID: "U1", ThreadID: "T1", ChannelID: "C1", LastActivity: time.Now(),
	}
	if err := db.Create(&thread).Error; err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	for i, content := range []string{"hi", "hello back"} {
		msg := models.ConversationMessage{
			ThreadRef: thread.ID, Sequence: i, Role: "user", Content: content,
		}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	w, body := get(t, router, "/api/conversations/U1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var threads []ThreadRow
	if err := json.Unmarshal(body["threads"], &threads); err != nil {
		t.Fatalf("decode threads: %v", err)
	}
	if len(threads) != 1 || threads[0].ThreadID != "T1" || threads[0].Messages != 2 {
		t.Errorf("threads = %+v", threads)
	}

	_, body = get(t, router, "/api/conversations/nobody")
	if err := json.Unmarshal(body["threads"], &threads); err != nil {
		t.Fatalf("decode threads: %v", err)
	}
	if len(threads) != 0 {
		t.Errorf("unknown user threads = %+v", threads)
	}
}
