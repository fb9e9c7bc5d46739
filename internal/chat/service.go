package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"gorm.io/gorm"
)

const (
	titleWidth   = 30
	snippetWidth = 100

	// DefaultTitle is used when a session is created without a seed message.
	DefaultTitle = "新しい会話"
)

var ErrSessionNotFound = gorm.ErrRecordNotFound

// Store is what the service needs from persistence. *Repo implements it;
// tests wrap it to inject failures.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, userID uint64) ([]Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	InsertMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	CountMessages(ctx context.Context, sessionID string) (int64, error)
	UpdateSessionSummary(ctx context.Context, sessionID string, lastMessage string, count int64, at time.Time) error
}

type Service struct {
	store    Store
	provider ai.Provider
}

func NewService(store Store, provider ai.Provider) *Service {
	return &Service{store: store, provider: provider}
}

// truncateRunes cuts s to at most n runes. Widths are rune counts so that
// Japanese text truncates the way users expect.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// DeriveTitle builds a session title from the seed text: the first titleWidth
// runes, with an ellipsis marker when truncated. Derived once, never
// regenerated.
func DeriveTitle(seed string) string {
	if strings.TrimSpace(seed) == "" {
		return DefaultTitle
	}
	if len([]rune(seed)) <= titleWidth {
		return seed
	}
	return truncateRunes(seed, titleWidth) + "..."
}

// CreateSession persists a new session, optionally seeded with the first
// message text.
func (s *Service) CreateSession(ctx context.Context, userID uint64, seed string) (*Session, error) {
	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		SessionID: sid,
		UserID:    userID,
		Title:     DeriveTitle(seed),
	}
	if seed != "" {
		last := truncateRunes(seed, snippetWidth)
		sess.LastMessage = &last
		sess.MessageCount = 1
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// RecordMessage persists one message row, then recomputes the session's
// denormalized summary from the authoritative rows. A failed recompute is
// logged and swallowed: the message is the durable record, the summary only
// feeds the sidebar and heals on the next append.
func (s *Service) RecordMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	m := &Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	if err := s.refreshSummary(ctx, sessionID, content); err != nil {
		log.Printf("chat: summary update failed session=%s err=%v", sessionID, err)
	}
	return m, nil
}

// refreshSummary recomputes message_count by counting rows instead of
// incrementing, so a crash between insert and update self-heals.
func (s *Service) refreshSummary(ctx context.Context, sessionID, lastMessage string) error {
	count, err := s.store.CountMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.store.UpdateSessionSummary(ctx, sessionID,
		truncateRunes(lastMessage, snippetWidth), count, time.Now())
}

// Reply asks the provider for the next assistant turn given the working list.
func (s *Service) Reply(ctx context.Context, history []TranscriptMessage) (string, error) {
	msgs := make([]ai.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	return s.provider.Chat(ctx, ai.ChatPrompt(msgs), ai.ChatOptions)
}

// SendMessage is the server-side send path: verify ownership, persist the
// user turn, replay the full history to the provider, persist the reply.
// A provider failure leaves the persisted user message in place; the session
// stays usable for a retry.
func (s *Service) SendMessage(ctx context.Context, userID uint64, sessionID, content string) (string, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}

	if _, err := s.RecordMessage(ctx, sess.SessionID, ai.RoleUser, content); err != nil {
		return "", err
	}

	history, err := s.store.ListMessages(ctx, sess.SessionID)
	if err != nil {
		return "", err
	}
	msgs := make([]ai.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.provider.Chat(ctx, ai.ChatPrompt(msgs), ai.ChatOptions)
	if err != nil {
		return "", err
	}

	if _, err := s.RecordMessage(ctx, sess.SessionID, ai.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// Session fetches an owned session or ErrSessionNotFound.
func (s *Service) Session(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	return s.ownedSession(ctx, userID, sessionID)
}

// History returns the full ordered message list for an owned session.
func (s *Service) History(ctx context.Context, userID uint64, sessionID string) ([]Message, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

func (s *Service) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	return s.store.ListSessions(ctx, userID)
}

func (s *Service) DeleteSession(ctx context.Context, userID uint64, sessionID string) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, sessionID)
}

func (s *Service) ownedSession(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
