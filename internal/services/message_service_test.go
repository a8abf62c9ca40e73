package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/events"
	"github.com/tbourn/go-messaging-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newMessageService wires the full production subscriber set so service
// tests observe the real side effects (notifications, history).
func newMessageService(t *testing.T) (*MessageService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	bus := events.NewBus()
	bus.Subscribe(events.NotificationFanout{DB: db})
	bus.Subscribe(events.EditAuditLog{DB: db})
	bus.Subscribe(events.CascadeCleanup{DB: db})
	return &MessageService{DB: db, Bus: bus, MaxBodyRunes: 100}, db
}

func TestSend_PersistsAndNotifiesExactlyOnce(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", "bob", "  hello  ", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Body != "hello" {
		t.Fatalf("Body = %q, want trimmed", msg.Body)
	}

	var count int64
	db.Model(&domain.Notification{}).Where("user_id = ?", "bob").Count(&count)
	if count != 1 {
		t.Fatalf("send produced %d notifications, want exactly 1", count)
	}
	notifs, _ := repo.ListNotifications(ctx, db, "bob", 10)
	if notifs[0].Kind != domain.KindNewMessage {
		t.Fatalf("Kind = %q, want %q", notifs[0].Kind, domain.KindNewMessage)
	}
}

func TestSend_ReplyNotificationKind(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()

	root, err := svc.Send(ctx, "alice", "bob", "question", nil)
	if err != nil {
		t.Fatalf("send root: %v", err)
	}
	reply, err := svc.Send(ctx, "bob", "alice", "answer", &root.ID)
	if err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if reply.ParentID == nil || *reply.ParentID != root.ID {
		t.Fatalf("reply must link to its parent")
	}

	notifs, _ := repo.ListNotifications(ctx, db, "alice", 10)
	if len(notifs) != 1 || notifs[0].Kind != domain.KindReply {
		t.Fatalf("reply notification = %+v, want one of kind %q", notifs, domain.KindReply)
	}
}

func TestSend_Validation(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", "   ", nil); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("blank body err = %v, want ErrEmptyBody", err)
	}
	if _, err := svc.Send(ctx, "alice", "alice", "hi", nil); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("self-send err = %v, want ErrSelfMessage", err)
	}
	long := strings.Repeat("x", 101)
	if _, err := svc.Send(ctx, "alice", "bob", long, nil); !errors.Is(err, ErrTooLong) {
		t.Fatalf("oversize body err = %v, want ErrTooLong", err)
	}
	missing := "no-such-id"
	if _, err := svc.Send(ctx, "alice", "bob", "hi", &missing); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("missing parent err = %v, want ErrParentNotFound", err)
	}
	// An empty-string parent pointer means "no parent", not an error.
	empty := ""
	if _, err := svc.Send(ctx, "alice", "bob", "hi", &empty); err != nil {
		t.Fatalf("empty parent pointer: %v", err)
	}
}

// failingSubscriber simulates a broken side-effect writer.
type failingSubscriber struct{ err error }

func (failingSubscriber) Name() string { return "failing" }

func (f failingSubscriber) Handle(context.Context, events.Event) error { return f.err }

func TestSend_SubscriberFailureSurfaces(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("fanout down")
	bus := events.NewBus()
	bus.Subscribe(failingSubscriber{err: boom})
	svc := &MessageService{DB: db, Bus: bus}

	_, err := svc.Send(context.Background(), "alice", "bob", "hello", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("send err = %v, want the subscriber failure", err)
	}
}

func TestEdit_RecordsHistoryOnlyOnRealChange(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Send(ctx, "alice", "bob", "v1", nil)

	// Identical body: no write, no history, no edited flag.
	same, err := svc.Edit(ctx, "alice", msg.ID, "v1")
	if err != nil {
		t.Fatalf("no-op edit: %v", err)
	}
	if same.Edited {
		t.Fatalf("no-op edit must not flag the message edited")
	}
	hist, _ := repo.ListMessageHistory(ctx, db, msg.ID)
	if len(hist) != 0 {
		t.Fatalf("no-op edit wrote %d history rows, want 0", len(hist))
	}

	// Real change: body replaced, one history row holding the old body.
	edited, err := svc.Edit(ctx, "alice", msg.ID, "v2")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Body != "v2" || !edited.Edited {
		t.Fatalf("edited = %+v, want new body and edited flag", edited)
	}
	hist, _ = repo.ListMessageHistory(ctx, db, msg.ID)
	if len(hist) != 1 || hist[0].PreviousBody != "v1" {
		t.Fatalf("history = %+v, want one row with the pre-edit body", hist)
	}
}

func TestEdit_OnlySenderMayEdit(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Send(ctx, "alice", "bob", "hello", nil)

	if _, err := svc.Edit(ctx, "bob", msg.ID, "hijacked"); !errors.Is(err, ErrNotSender) {
		t.Fatalf("receiver edit err = %v, want ErrNotSender", err)
	}
	if _, err := svc.Edit(ctx, "alice", "missing", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("missing message err = %v, want ErrMessageNotFound", err)
	}
}

func TestMarkRead_OnlyReceiver(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Send(ctx, "alice", "bob", "hello", nil)

	if err := svc.MarkRead(ctx, "alice", msg.ID); !errors.Is(err, ErrNotReceiver) {
		t.Fatalf("sender mark-read err = %v, want ErrNotReceiver", err)
	}
	if err := svc.MarkRead(ctx, "bob", msg.ID); err != nil {
		t.Fatalf("receiver mark-read: %v", err)
	}
	got, _ := repo.GetMessage(ctx, svc.DB, msg.ID)
	if !got.Read {
		t.Fatalf("message must be flagged read")
	}
}

func TestDelete_OnlySenderAndCascades(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Send(ctx, "alice", "bob", "hello", nil)

	if err := svc.Delete(ctx, "bob", msg.ID); !errors.Is(err, ErrNotSender) {
		t.Fatalf("receiver delete err = %v, want ErrNotSender", err)
	}
	if err := svc.Delete(ctx, "alice", msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	db.Model(&domain.Notification{}).Where("message_id = ?", msg.ID).Count(&n)
	if n != 0 {
		t.Fatalf("delete left %d notifications behind", n)
	}
}

func TestThread_ParticipantsOnly(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	root, _ := svc.Send(ctx, "alice", "bob", "root", nil)
	svc.Send(ctx, "bob", "alice", "reply", &root.ID)

	thread, err := svc.Thread(ctx, "bob", root.ID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 2 {
		t.Fatalf("thread has %d messages, want 2", len(thread))
	}

	if _, err := svc.Thread(ctx, "carol", root.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider err = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.Thread(ctx, "alice", "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("missing root err = %v, want ErrMessageNotFound", err)
	}
}

func TestListConversation_Pagination(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Send(ctx, "alice", "bob", fmt.Sprintf("m%d", i), nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := svc.ListConversation(ctx, "alice", "bob", 1, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Messages) != 3 || page.Page != 1 || page.PerPage != 3 {
		t.Fatalf("page = %+v", page)
	}
	second, _ := svc.ListConversation(ctx, "alice", "bob", 2, 3)
	if len(second.Messages) != 2 {
		t.Fatalf("second page has %d messages, want 2", len(second.Messages))
	}
}

func TestUnreadLifecycle(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	svc.Send(ctx, "alice", "bob", "one", nil)
	svc.Send(ctx, "carol", "bob", "two", nil)

	unread, err := svc.Unread(ctx, "bob")
	if err != nil || len(unread) != 2 {
		t.Fatalf("Unread = %d, %v; want 2", len(unread), err)
	}
	if total, _ := svc.UnreadCount(ctx, "bob"); total != 2 {
		t.Fatalf("UnreadCount = %d, want 2", total)
	}

	n, err := svc.MarkAllRead(ctx, "bob", nil)
	if err != nil || n != 2 {
		t.Fatalf("MarkAllRead = %d, %v; want 2", n, err)
	}
	if total, _ := svc.UnreadCount(ctx, "bob"); total != 0 {
		t.Fatalf("UnreadCount after mark = %d, want 0", total)
	}
}

func TestHistory_ParticipantsOnly(t *testing.T) {
	svc, _ := newMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Send(ctx, "alice", "bob", "v1", nil)
	svc.Edit(ctx, "alice", msg.ID, "v2")

	hist, err := svc.History(ctx, "bob", msg.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].PreviousBody != "v1" {
		t.Fatalf("history = %+v", hist)
	}
	if _, err := svc.History(ctx, "carol", msg.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider err = %v, want ErrNotParticipant", err)
	}
}

func TestNotificationService(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()
	svc.Send(ctx, "alice", "bob", "hello", nil)

	nsvc := &NotificationService{DB: db}
	notifs, err := nsvc.List(ctx, "bob", 10)
	if err != nil || len(notifs) != 1 {
		t.Fatalf("List = %d, %v; want 1", len(notifs), err)
	}
	if err := nsvc.MarkRead(ctx, "bob", notifs[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := nsvc.MarkRead(ctx, "bob", "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("missing err = %v, want ErrNotificationNotFound", err)
	}
	if err := nsvc.MarkRead(ctx, "alice", notifs[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("cross-user err = %v, want ErrNotificationNotFound", err)
	}
}

func TestAccountService_DeleteCascades(t *testing.T) {
	svc, db := newMessageService(t)
	ctx := context.Background()
	svc.Send(ctx, "victim", "bob", "hello", nil)
	svc.Send(ctx, "bob", "victim", "back at you", nil)
	survivor, _ := svc.Send(ctx, "carol", "dave", "unrelated", nil)

	acct := &AccountService{Bus: svc.Bus}
	if err := acct.DeleteAccount(ctx, "victim"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	var n int64
	db.Model(&domain.Message{}).
		Where("sender_id = ? OR receiver_id = ?", "victim", "victim").
		Count(&n)
	if n != 0 {
		t.Fatalf("%d of the principal's messages survived", n)
	}
	if _, err := repo.GetMessage(ctx, db, survivor.ID); err != nil {
		t.Fatalf("unrelated message must survive: %v", err)
	}
}
