package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kokoro-apps/empathy-diary/internal/ai"
)

// DiarySaver is the save-back target for conversations. The diary service
// implements it.
type DiarySaver interface {
	SaveEntry(ctx context.Context, userID uint64, title, content string, tags []string) error
}

// Emotion tags stamped on diary entries produced from a conversation.
const (
	TagConversation   = "conversation"
	TagAIConversation = "ai-conversation"
)

type quotePhase int

const (
	quoteIdle quotePhase = iota
	quoteInitializing
	quoteActive
)

var ErrEmptyConversation = errors.New("chat: conversation has no messages")

// Conversation owns the working list for one displayed conversation: the
// ordered in-memory messages, the current session pointer, and the quote
// state machine. The working list is authoritative while the conversation is
// active; persistence is best-effort and the conversation keeps operating in
// memory-only mode when session creation fails.
type Conversation struct {
	svc    *Service
	diary  DiarySaver
	userID uint64

	session  *Session
	messages []TranscriptMessage
	lastErr  error

	phase      quotePhase
	lastQuoted string
}

func NewConversation(svc *Service, diary DiarySaver, userID uint64) *Conversation {
	return &Conversation{svc: svc, diary: diary, userID: userID}
}

func (c *Conversation) Messages() []TranscriptMessage { return c.messages }
func (c *Conversation) Session() *Session             { return c.session }
func (c *Conversation) Err() error                    { return c.lastErr }

// Send appends a user turn to the working list, persists it, and requests
// the assistant reply. The user message stays in the list even when the
// provider or the store fails; the caller may simply send again.
func (c *Conversation) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("chat: message text is required")
	}
	c.lastErr = nil

	c.messages = append(c.messages, TranscriptMessage{
		Role:      ai.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})

	c.ensureSession(ctx, text)

	if c.session != nil {
		if _, err := c.svc.RecordMessage(ctx, c.session.SessionID, ai.RoleUser, text); err != nil {
			c.lastErr = err
			return err
		}
	}

	return c.requestReply(ctx)
}

// requestReply invokes the provider with the history exactly as it stands
// after the triggering append. On failure nothing is added and the
// conversation remains usable.
func (c *Conversation) requestReply(ctx context.Context) error {
	reply, err := c.svc.Reply(ctx, c.messages)
	if err != nil {
		c.lastErr = err
		return err
	}

	c.messages = append(c.messages, TranscriptMessage{
		Role:      ai.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})

	if c.session != nil {
		if _, err := c.svc.RecordMessage(ctx, c.session.SessionID, ai.RoleAssistant, reply); err != nil {
			c.lastErr = err
			return err
		}
	}
	return nil
}

// ensureSession lazily creates the persisted session from the first message.
// Creation failure degrades to memory-only mode instead of blocking the
// conversation.
func (c *Conversation) ensureSession(ctx context.Context, seed string) {
	if c.session != nil {
		return
	}
	sess, err := c.svc.CreateSession(ctx, c.userID, seed)
	if err != nil {
		log.Printf("chat: session create failed, continuing in memory: %v", err)
		return
	}
	c.session = sess
}

func quotedMessage(content string) string {
	return fmt.Sprintf("以下の日記について話したいです：\n\n\"%s\"", content)
}

// Quote drives the seeding state machine. A non-empty value that differs
// from the last-seen one starts a fresh seeded conversation; the same value
// again is a no-op; an empty value while one was recorded clears everything.
func (c *Conversation) Quote(ctx context.Context, content string) error {
	if content == "" {
		if c.lastQuoted != "" {
			c.Reset()
		}
		return nil
	}
	if c.phase == quoteInitializing || c.lastQuoted == content {
		return nil
	}

	c.phase = quoteInitializing
	c.lastQuoted = content
	c.lastErr = nil
	c.session = nil

	seeded := TranscriptMessage{
		Role:      ai.RoleUser,
		Content:   quotedMessage(content),
		Timestamp: time.Now(),
	}
	c.messages = []TranscriptMessage{seeded}

	c.ensureSession(ctx, seeded.Content)
	if c.session != nil {
		if _, err := c.svc.RecordMessage(ctx, c.session.SessionID, ai.RoleUser, seeded.Content); err != nil {
			return c.failQuote(err)
		}
	}

	reply, err := c.svc.Reply(ctx, c.messages)
	if err != nil {
		return c.failQuote(err)
	}

	c.messages = append(c.messages, TranscriptMessage{
		Role:      ai.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	if c.session != nil {
		if _, err := c.svc.RecordMessage(ctx, c.session.SessionID, ai.RoleAssistant, reply); err != nil {
			return c.failQuote(err)
		}
	}

	c.phase = quoteActive
	return nil
}

// failQuote clears the in-progress flag and the last-seen value together so
// the same quote can legitimately be retried after a failure.
func (c *Conversation) failQuote(err error) error {
	c.phase = quoteIdle
	c.lastQuoted = ""
	c.lastErr = err
	return err
}

// LoadSession replaces the working list wholesale with the stored history of
// an owned session. Loading a historical session and quoting are mutually
// exclusive starting points, so the quote state resets.
func (c *Conversation) LoadSession(ctx context.Context, sessionID string) error {
	sess, err := c.svc.Session(ctx, c.userID, sessionID)
	if err != nil {
		c.lastErr = err
		return err
	}
	stored, err := c.svc.History(ctx, c.userID, sessionID)
	if err != nil {
		c.lastErr = err
		return err
	}

	msgs := make([]TranscriptMessage, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, TranscriptMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}

	c.messages = msgs
	c.session = sess
	c.lastErr = nil
	c.phase = quoteIdle
	c.lastQuoted = ""
	return nil
}

// Reset starts a new conversation. Nothing persisted is deleted.
func (c *Conversation) Reset() {
	c.messages = nil
	c.session = nil
	c.lastErr = nil
	c.phase = quoteIdle
	c.lastQuoted = ""
}

func speakerLabel(role string) string {
	if role == ai.RoleUser {
		return "あなた"
	}
	return "AI"
}

// SaveConversationAsDiary writes the whole transcript as one diary entry,
// one "speaker: text" line per message in display order.
func (c *Conversation) SaveConversationAsDiary(ctx context.Context) error {
	if len(c.messages) == 0 {
		return ErrEmptyConversation
	}

	lines := make([]string, 0, len(c.messages))
	for _, m := range c.messages {
		lines = append(lines, speakerLabel(m.Role)+": "+m.Content)
	}

	title := "AIとの会話 - " + time.Now().Format("2006/1/2")
	return c.diary.SaveEntry(ctx, c.userID, title, strings.Join(lines, "\n\n"), []string{TagConversation})
}

// SaveMessageAsDiary writes a single assistant reply as a diary entry.
func (c *Conversation) SaveMessageAsDiary(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("chat: message content is required")
	}
	title := "AIとの会話から - " + time.Now().Format("2006/1/2")
	return c.diary.SaveEntry(ctx, c.userID, title, content, []string{TagAIConversation})
}
