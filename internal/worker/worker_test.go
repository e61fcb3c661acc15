package worker

import (
	"context"
	"testing"
	"time"

	"hively/internal/domain"
	"hively/internal/models"
	"hively/internal/provider"
	"hively/internal/queue"
	"hively/internal/repository"
	"hively/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeEmail struct {
	out   provider.Outcome
	calls int
	last  provider.EmailMessage
}

func (f *fakeEmail) Send(_ context.Context, msg provider.EmailMessage) provider.Outcome {
	f.calls++
	f.last = msg
	return f.out
}

type fakePush struct {
	out    provider.Outcome
	calls  int
	tokens []string
	data   map[string]string
}

func (f *fakePush) Send(_ context.Context, tokens []string, _, _ string, data map[string]string) provider.Outcome {
	f.calls++
	f.tokens = tokens
	f.data = data
	return f.out
}

func setupRepo(t *testing.T) *repository.NotificationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewNotificationRepository(db)
}

func saveTwoChannelNotification(t *testing.T, repo *repository.NotificationRepository) *models.Notification {
	t.Helper()
	now := time.Now().UTC()
	n := &models.Notification{
		ID:     "n1",
		UserID: "u1",
		Type:   "TEST",
		Title:  "title",
		Body:   "body",
		Deliveries: models.DeliveryMap{
			domain.ChannelEmail: {Status: domain.DeliveryPending, UpdatedAt: now},
			domain.ChannelPush:  {Status: domain.DeliveryPending, UpdatedAt: now},
		},
		Targets: models.DeliveryTargets{
			Email: &models.EmailTarget{To: "bee@example.com", Subject: "hi"},
			Push:  &models.PushTarget{Tokens: []string{"tok1", "tok2"}},
		},
		CreatedAt: now,
	}
	if err := repo.Save(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

func jobFor(n *models.Notification) queue.Job {
	return queue.Job{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Metadata:       n.Metadata,
		Targets:        n.Targets,
	}
}

func TestHandlePersistsPerChannelOutcome(t *testing.T) {
	repo := setupRepo(t)
	n := saveTwoChannelNotification(t, repo)
	email := &fakeEmail{out: provider.Sent()}
	push := &fakePush{out: provider.Failed("fcm down")}
	w := New(repo, email, push, logger.NewNop())

	if err := w.Handle(context.Background(), jobFor(n)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, err := repo.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Deliveries[domain.ChannelEmail].Status != domain.DeliverySent {
		t.Fatalf("email status %q, want sent", got.Deliveries[domain.ChannelEmail].Status)
	}
	pushRec := got.Deliveries[domain.ChannelPush]
	if pushRec.Status != domain.DeliveryFailed || pushRec.Error != "fcm down" {
		t.Fatalf("push record %+v, want failed/fcm down", pushRec)
	}
	if email.calls != 1 || push.calls != 1 {
		t.Fatalf("provider calls email=%d push=%d, want 1/1", email.calls, push.calls)
	}
	if len(push.tokens) != 2 {
		t.Fatalf("push got %d tokens, want the whole batch", len(push.tokens))
	}
}

func TestEmailFailureDoesNotStopPush(t *testing.T) {
	repo := setupRepo(t)
	n := saveTwoChannelNotification(t, repo)
	email := &fakeEmail{out: provider.Failed("smtp 550")}
	push := &fakePush{out: provider.Sent()}
	w := New(repo, email, push, logger.NewNop())

	if err := w.Handle(context.Background(), jobFor(n)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if push.calls != 1 {
		t.Fatal("push channel skipped after email failure")
	}
	got, _ := repo.GetByID(context.Background(), n.ID)
	if got.Deliveries[domain.ChannelPush].Status != domain.DeliverySent {
		t.Fatal("push outcome not persisted")
	}
}

func TestAbsentChannelsAreNeverTouched(t *testing.T) {
	repo := setupRepo(t)
	now := time.Now().UTC()
	n := &models.Notification{
		ID:     "email-only",
		UserID: "u1",
		Type:   "TEST",
		Deliveries: models.DeliveryMap{
			domain.ChannelEmail: {Status: domain.DeliveryPending, UpdatedAt: now},
		},
		Targets:   models.DeliveryTargets{Email: &models.EmailTarget{To: "bee@example.com"}},
		CreatedAt: now,
	}
	if err := repo.Save(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	email := &fakeEmail{out: provider.Sent()}
	push := &fakePush{out: provider.Sent()}
	w := New(repo, email, push, logger.NewNop())

	if err := w.Handle(context.Background(), jobFor(n)); err != nil {
		t.Fatal(err)
	}
	if push.calls != 0 {
		t.Fatal("push provider called for a job without push targets")
	}
	got, _ := repo.GetByID(context.Background(), n.ID)
	if _, ok := got.Deliveries[domain.ChannelPush]; ok {
		t.Fatal("push entry appeared; absent differs from skipped")
	}
}

func TestUnknownNotificationIDIsDropped(t *testing.T) {
	repo := setupRepo(t)
	email := &fakeEmail{out: provider.Sent()}
	w := New(repo, email, &fakePush{out: provider.Sent()}, logger.NewNop())

	job := queue.Job{
		NotificationID: "vanished",
		Targets:        models.DeliveryTargets{Email: &models.EmailTarget{To: "x@example.com"}},
	}
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("stale job must not error: %v", err)
	}
}

func TestPushDataCarriesTypeAndMetadata(t *testing.T) {
	repo := setupRepo(t)
	now := time.Now().UTC()
	n := &models.Notification{
		ID:     "n2",
		UserID: "u1",
		Type:   "TASK_ASSIGNED",
		Metadata: models.JSONMap{
			"task_id": "t-9",
			"html":    "<b>hidden</b>",
		},
		Deliveries: models.DeliveryMap{
			domain.ChannelPush: {Status: domain.DeliveryPending, UpdatedAt: now},
		},
		Targets:   models.DeliveryTargets{Push: &models.PushTarget{Tokens: []string{"tok"}}},
		CreatedAt: now,
	}
	if err := repo.Save(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	push := &fakePush{out: provider.Sent()}
	w := New(repo, &fakeEmail{out: provider.Sent()}, push, logger.NewNop())

	if err := w.Handle(context.Background(), jobFor(n)); err != nil {
		t.Fatal(err)
	}
	if push.data["type"] != "TASK_ASSIGNED" || push.data["task_id"] != "t-9" {
		t.Fatalf("push data incomplete: %v", push.data)
	}
	if _, ok := push.data["html"]; ok {
		t.Fatal("html rendering hint leaked into push data")
	}
}
