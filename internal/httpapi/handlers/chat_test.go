package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"github.com/kokoro-apps/empathy-diary/internal/chat"
	"github.com/kokoro-apps/empathy-diary/internal/httpapi/middleware"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

var testUserSeq uint64 = 900

func nextUserID() uint64 {
	return atomic.AddUint64(&testUserSeq, 1)
}

type fakeProvider struct {
	calls int
}

func (p *fakeProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.GenOptions) (string, error) {
	_ = ctx
	p.calls++
	return "わかりますよ", nil
}

type fakeLocker struct {
	token string
	err   error
	held  bool

	acquires int
	released []string
}

func (l *fakeLocker) AcquireSendLock(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	_ = ctx
	l.acquires++
	if l.err != nil {
		return "", l.err
	}
	if l.held {
		return "", nil
	}
	return l.token, nil
}

func (l *fakeLocker) ReleaseSendLock(ctx context.Context, sessionID, token string) error {
	_ = ctx
	l.released = append(l.released, token)
	return nil
}

func newChatHandler(t *testing.T, provider ai.Provider, locks SendLocker) *Handler {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &Handler{
		DB:      db,
		Locks:   locks,
		ChatSvc: chat.NewService(chat.NewRepo(db), provider),
	}
}

func postSendMessage(t *testing.T, h *Handler, uid uint64, sessionID, message string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"session_id": sessionID, "message": message})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/chat/messages", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.UserIDKey, uid)
	h.SendChatMessage(c)
	return w
}

func TestSendChatMessage_ReleasesOwnToken(t *testing.T) {
	locks := &fakeLocker{token: "tok-a"}
	h := newChatHandler(t, &fakeProvider{}, locks)
	uid := nextUserID()

	sess, err := h.ChatSvc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	w := postSendMessage(t, h, uid, sess.SessionID, "こんにちは")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if locks.acquires != 1 {
		t.Fatalf("acquires: got %d", locks.acquires)
	}
	if len(locks.released) != 1 || locks.released[0] != "tok-a" {
		t.Fatalf("expected release of own token, got %v", locks.released)
	}
}

func TestSendChatMessage_LockHeldRejects(t *testing.T) {
	locks := &fakeLocker{held: true}
	prov := &fakeProvider{}
	h := newChatHandler(t, prov, locks)
	uid := nextUserID()

	sess, err := h.ChatSvc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	w := postSendMessage(t, h, uid, sess.SessionID, "こんにちは")
	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d", w.Code)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called while locked, calls=%d", prov.calls)
	}
	if len(locks.released) != 0 {
		t.Fatalf("a rejected send must not release the holder's lock, got %v", locks.released)
	}
}

func TestSendChatMessage_AcquireErrorDoesNotRelease(t *testing.T) {
	locks := &fakeLocker{err: errors.New("redis down")}
	h := newChatHandler(t, &fakeProvider{}, locks)
	uid := nextUserID()

	sess, err := h.ChatSvc.CreateSession(context.Background(), uid, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// exclusion degrades, the send still goes through
	w := postSendMessage(t, h, uid, sess.SessionID, "こんにちは")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	// but a lock this request never took must not be deleted
	if len(locks.released) != 0 {
		t.Fatalf("release after failed acquire would free another sender's lock, got %v", locks.released)
	}
}
