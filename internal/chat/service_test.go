package chat

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"gorm.io/gorm"
)

var testUserSeq uint64 = 100

func nextUserID() uint64 {
	return atomic.AddUint64(&testUserSeq, 1)
}

type fakeProvider struct {
	reply    string
	failNext bool
	calls    int
	last     []ai.Message
}

func (p *fakeProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.GenOptions) (string, error) {
	_ = ctx
	_ = opts
	p.calls++
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	if p.failNext {
		p.failNext = false
		return "", errors.New("provider down")
	}
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

// flakyStore wraps the real repo to inject failures on selected operations.
type flakyStore struct {
	Store
	failSummary bool
	failCreate  bool
}

func (f *flakyStore) UpdateSessionSummary(ctx context.Context, sessionID string, lastMessage string, count int64, at time.Time) error {
	if f.failSummary {
		return errors.New("summary update rejected")
	}
	return f.Store.UpdateSessionSummary(ctx, sessionID, lastMessage, count, at)
}

func (f *flakyStore) CreateSession(ctx context.Context, s *Session) error {
	if f.failCreate {
		return errors.New("session insert rejected")
	}
	return f.Store.CreateSession(ctx, s)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestDeriveTitle(t *testing.T) {
	if got := DeriveTitle("辛い一日でした"); got != "辛い一日でした" {
		t.Fatalf("short seed: got %q", got)
	}

	exact := strings.Repeat("あ", 30)
	if got := DeriveTitle(exact); got != exact {
		t.Fatalf("exact-width seed should not be truncated, got %q", got)
	}

	long := strings.Repeat("あ", 31)
	got := DeriveTitle(long)
	if got != strings.Repeat("あ", 30)+"..." {
		t.Fatalf("long seed: got %q", got)
	}
	if len([]rune(strings.TrimSuffix(got, "..."))) != 30 {
		t.Fatalf("truncated prefix width != 30")
	}

	if got := DeriveTitle("  "); got != DefaultTitle {
		t.Fatalf("blank seed: got %q", got)
	}
}

func TestCreateSession_Seeded(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), &fakeProvider{})
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "辛い一日でした")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Title != "辛い一日でした" {
		t.Fatalf("title: got %q", sess.Title)
	}
	if sess.LastMessage == nil || *sess.LastMessage != "辛い一日でした" {
		t.Fatalf("last_message: got %v", sess.LastMessage)
	}
	if sess.MessageCount != 1 {
		t.Fatalf("message_count: got %d", sess.MessageCount)
	}

	empty, err := svc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create unseeded session: %v", err)
	}
	if empty.Title != DefaultTitle {
		t.Fatalf("default title: got %q", empty.Title)
	}
	if empty.LastMessage != nil || empty.MessageCount != 0 {
		t.Fatalf("unseeded session should have no summary, got %v/%d", empty.LastMessage, empty.MessageCount)
	}
}

func TestRecordMessage_RecomputesSummary(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, &fakeProvider{})
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "辛い一日でした")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.RecordMessage(context.Background(), sess.SessionID, ai.RoleUser, "辛い一日でした"); err != nil {
		t.Fatalf("record user msg: %v", err)
	}
	if _, err := svc.RecordMessage(context.Background(), sess.SessionID, ai.RoleAssistant, "そうなんですね"); err != nil {
		t.Fatalf("record assistant msg: %v", err)
	}

	got, err := repo.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.LastMessage == nil || *got.LastMessage != "そうなんですね" {
		t.Fatalf("last_message: got %v", got.LastMessage)
	}
	if got.MessageCount != 2 {
		t.Fatalf("message_count: got %d", got.MessageCount)
	}
}

func TestRecordMessage_SummaryFailureSwallowed(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	store := &flakyStore{Store: repo, failSummary: true}
	svc := NewService(store, &fakeProvider{})
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// insert succeeds, summary update fails: no error surfaces and the
	// message row is durable
	if _, err := svc.RecordMessage(context.Background(), sess.SessionID, ai.RoleUser, "hello"); err != nil {
		t.Fatalf("record with failing summary: %v", err)
	}
	n, err := repo.CountMessages(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 persisted message, got %d", n)
	}
	stale, _ := repo.GetSession(context.Background(), sess.SessionID)
	if stale.MessageCount != 0 {
		t.Fatalf("summary should be stale after failed update, got %d", stale.MessageCount)
	}

	// the next recompute heals the cache from the authoritative row count
	store.failSummary = false
	if _, err := svc.RecordMessage(context.Background(), sess.SessionID, ai.RoleAssistant, "hi"); err != nil {
		t.Fatalf("record after recovery: %v", err)
	}
	healed, _ := repo.GetSession(context.Background(), sess.SessionID)
	if healed.MessageCount != 2 {
		t.Fatalf("expected healed count 2, got %d", healed.MessageCount)
	}
}

func TestSendMessage_WritesUserAndAssistant(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &fakeProvider{reply: "そうなんですね"}
	svc := NewService(repo, prov)
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	reply, err := svc.SendMessage(context.Background(), uid, sess.SessionID, "辛い一日でした")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if reply != "そうなんですね" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	msgs, err := repo.ListMessages(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[0].Content != "辛い一日でした" {
		t.Fatalf("unexpected user msg: role=%q content=%q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != ai.RoleAssistant || msgs[1].Content != "そうなんですね" {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", msgs[1].Role, msgs[1].Content)
	}

	// provider received the flattened single-turn chat prompt
	if len(prov.last) != 1 || prov.last[0].Role != ai.RoleUser {
		t.Fatalf("expected one framed user turn, got %+v", prov.last)
	}
	if !strings.Contains(prov.last[0].Content, "ユーザー: 辛い一日でした") {
		t.Fatalf("prompt missing flattened history: %q", prov.last[0].Content)
	}

	got, _ := repo.GetSession(context.Background(), sess.SessionID)
	if got.MessageCount != 2 {
		t.Fatalf("message_count: got %d", got.MessageCount)
	}
	if got.LastMessage == nil || *got.LastMessage != "そうなんですね" {
		t.Fatalf("last_message: got %v", got.LastMessage)
	}
}

func TestSendMessage_ProviderFailureKeepsUserMessage(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &fakeProvider{failNext: true}
	svc := NewService(repo, prov)
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), uid, sess.SessionID, "hello"); err == nil {
		t.Fatalf("expected provider error")
	}

	msgs, err := repo.ListMessages(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != ai.RoleUser {
		t.Fatalf("expected exactly the user message, got %+v", msgs)
	}

	got, _ := repo.GetSession(context.Background(), sess.SessionID)
	if got.MessageCount != 1 {
		t.Fatalf("message_count should match the one persisted row, got %d", got.MessageCount)
	}
}

func TestSendMessage_OwnershipEnforced(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), &fakeProvider{})
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), uid+1, sess.SessionID, "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession_CascadesMessages(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, &fakeProvider{})
	uid := nextUserID()

	sess, err := svc.CreateSession(context.Background(), uid, "seed")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordMessage(context.Background(), sess.SessionID, ai.RoleUser, "m"); err != nil {
			t.Fatalf("record msg %d: %v", i, err)
		}
	}

	if err := svc.DeleteSession(context.Background(), uid, sess.SessionID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	var orphans int64
	if err := db.Model(&Message{}).Where("session_id = ?", sess.SessionID).Count(&orphans).Error; err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no orphaned messages, got %d", orphans)
	}
}
