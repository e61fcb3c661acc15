package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hively/internal/domain"
	"hively/internal/events"
	"hively/internal/models"
	"hively/internal/provider"
	"hively/internal/queue"
	"hively/internal/repository"
	"hively/internal/service"
	"hively/internal/worker"
	"hively/internal/ws"
	"hively/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEmail struct{}

func (stubEmail) Send(context.Context, provider.EmailMessage) provider.Outcome {
	return provider.Sent()
}

type stubPush struct{}

func (stubPush) Send(context.Context, []string, string, string, map[string]string) provider.Outcome {
	return provider.Sent()
}

type testApp struct {
	router *gin.Engine
	users  *repository.UserRepository
	queue  *queue.Queue
	bus    *events.Bus
}

func setupAPI(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := repository.NewUserRepository(db)
	repo := repository.NewNotificationRepository(db)
	q := queue.New(2, logger.NewNop())
	svc := service.NewNotificationService(repo, q, ws.NewHub())
	q.Process(worker.New(repo, stubEmail{}, stubPush{}, logger.NewNop()).Handle)
	bus := events.NewBus(logger.NewNop())
	events.NewBridge(users, svc, logger.NewNop()).Register(bus)

	h := NewNotificationHandler(svc, bus)
	r := gin.New()
	api := r.Group("/api/v1")
	notifications := api.Group("/notifications")
	{
		notifications.POST("", h.Create)
		notifications.GET("", h.List)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.PATCH("/:id/read", h.MarkRead)
		notifications.POST("/events", h.IngestEvent)
	}
	return &testApp{router: r, users: users, queue: q, bus: bus}
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReturnsSanitizedNotification(t *testing.T) {
	app := setupAPI(t)

	w := doRequest(app.router, http.MethodPost, "/api/v1/notifications", map[string]any{
		"user_id": "u1",
		"type":    "TEST",
		"title":   "Hello",
		"body":    "World",
		"channels": map[string]any{
			"email": map[string]string{"to": "u1@example.com", "subject": "Hello"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if id, _ := resp["id"].(string); id == "" {
		t.Fatal("no id assigned")
	}
	if _, ok := resp["delivery_targets"]; ok {
		t.Fatal("delivery targets leaked into the response")
	}
	deliveries, ok := resp["deliveries"].(map[string]any)
	if !ok {
		t.Fatalf("deliveries missing: %v", resp)
	}
	email, ok := deliveries[domain.ChannelEmail].(map[string]any)
	if !ok {
		t.Fatal("email delivery entry missing")
	}
	if email["status"] != domain.DeliveryPending {
		t.Fatalf("email status %v immediately after create, want pending", email["status"])
	}
	if _, ok := deliveries[domain.ChannelPush]; ok {
		t.Fatal("push entry present without tokens")
	}
}

func TestCreateValidatesBody(t *testing.T) {
	app := setupAPI(t)

	w := doRequest(app.router, http.MethodPost, "/api/v1/notifications", map[string]any{
		"type": "TEST", "title": "no user",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestListRequiresUserIDAndSortsNewestFirst(t *testing.T) {
	app := setupAPI(t)

	if w := doRequest(app.router, http.MethodGet, "/api/v1/notifications", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id got %d, want 400", w.Code)
	}

	for _, title := range []string{"first", "second"} {
		w := doRequest(app.router, http.MethodPost, "/api/v1/notifications", map[string]any{
			"user_id": "u1", "type": "TEST", "title": title,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s: %d", title, w.Code)
		}
		time.Sleep(50 * time.Millisecond)
	}

	w := doRequest(app.router, http.MethodGet, "/api/v1/notifications?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(resp.Notifications))
	}
	if resp.Notifications[0].Title != "second" {
		t.Fatalf("newest-first violated: got %q first", resp.Notifications[0].Title)
	}
}

func TestMarkReadForeignNotificationIs404(t *testing.T) {
	app := setupAPI(t)

	w := doRequest(app.router, http.MethodPost, "/api/v1/notifications", map[string]any{
		"user_id": "u1", "type": "TEST", "title": "private",
	})
	var created models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = doRequest(app.router, http.MethodPatch, "/api/v1/notifications/"+created.ID+"/read", map[string]string{"user_id": "u2"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign mark-read got %d, want 404", w.Code)
	}

	w = doRequest(app.router, http.MethodPatch, "/api/v1/notifications/"+created.ID+"/read", map[string]string{"user_id": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("owner mark-read got %d, want 200", w.Code)
	}
	var marked models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &marked); err != nil {
		t.Fatal(err)
	}
	if marked.ReadAt == nil {
		t.Fatal("read_at not set")
	}

	// Second mark is a no-op returning the same read_at.
	w = doRequest(app.router, http.MethodPatch, "/api/v1/notifications/"+created.ID+"/read?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("re-mark got %d, want 200", w.Code)
	}
	var again models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &again); err != nil {
		t.Fatal(err)
	}
	if again.ReadAt == nil || !again.ReadAt.Equal(*marked.ReadAt) {
		t.Fatal("re-mark changed read_at")
	}
}

func TestMarkReadUnknownIDIs404(t *testing.T) {
	app := setupAPI(t)
	w := doRequest(app.router, http.MethodPatch, "/api/v1/notifications/ghost/read?user_id=u1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", w.Code)
	}
}

func TestUnreadCount(t *testing.T) {
	app := setupAPI(t)

	if w := doRequest(app.router, http.MethodGet, "/api/v1/notifications/unread-count", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id got %d, want 400", w.Code)
	}

	doRequest(app.router, http.MethodPost, "/api/v1/notifications", map[string]any{
		"user_id": "u1", "type": "TEST", "title": "t",
	})
	w := doRequest(app.router, http.MethodGet, "/api/v1/notifications/unread-count?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["unread"] != 1 {
		t.Fatalf("got %d unread, want 1", resp["unread"])
	}
}

func TestIngestEventRejectsUnknownType(t *testing.T) {
	app := setupAPI(t)

	w := doRequest(app.router, http.MethodPost, "/api/v1/notifications/events", map[string]any{
		"type": "hive.swarm.detected", "payload": map[string]any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event type got %d, want 400", w.Code)
	}
}

func TestIngestEventAcceptedAndProcessedAsync(t *testing.T) {
	app := setupAPI(t)
	if err := app.users.Create(context.Background(), &models.User{ID: "keeper", Email: "keeper@example.com"}); err != nil {
		t.Fatal(err)
	}

	w := doRequest(app.router, http.MethodPost, "/api/v1/notifications/events", map[string]any{
		"type": domain.EventTaskAssigned,
		"payload": map[string]any{
			"assignee_id": "keeper",
			"task_title":  "Check queen",
		},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202", w.Code)
	}
	app.bus.Wait()
	app.queue.Drain(time.Second)

	w = doRequest(app.router, http.MethodGet, "/api/v1/notifications?user_id=keeper", nil)
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("got %d notifications after event, want 1", len(resp.Notifications))
	}
	n := resp.Notifications[0]
	if n.Type != domain.NotifTaskAssigned {
		t.Fatalf("type %q", n.Type)
	}
	if n.Deliveries[domain.ChannelEmail].Status != domain.DeliverySent {
		t.Fatalf("email status %q after drain, want sent", n.Deliveries[domain.ChannelEmail].Status)
	}
}
