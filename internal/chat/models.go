package chat

import "time"

// Session carries denormalized preview fields for the sidebar. title is
// derived once at creation and never regenerated; last_message and
// message_count are caches recomputed from the message rows after every
// append, not incremented.
type Session struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID       uint64    `gorm:"index;not null" json:"-"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	LastMessage  *string   `gorm:"type:varchar(400)" json:"last_message"`
	MessageCount int64     `gorm:"not null;default:0" json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message rows are immutable once created. Ascending created_at order within
// a session reconstructs the conversation for replay and rendering.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);not null;index" json:"session_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// TranscriptMessage is the transient, in-memory form: it carries a
// capture-time timestamp and no session binding. The working list of these is
// the source of truth during an active exchange; persistence is a side
// effect.
type TranscriptMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
