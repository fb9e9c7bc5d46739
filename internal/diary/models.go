package diary

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one diary record. The encrypted_* column names are inherited from
// an earlier schema; contents are stored as plaintext, see crypto.go.
type Entry struct {
	ID               string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           uint64                      `gorm:"index;not null" json:"-"`
	EncryptedTitle   *string                     `gorm:"type:varchar(255)" json:"encrypted_title"`
	EncryptedContent string                      `gorm:"type:text;not null" json:"encrypted_content"`
	EmotionTags      datatypes.JSONSlice[string] `gorm:"type:json" json:"emotion_tags"`
	AIResponseID     *string                     `gorm:"type:varchar(36);index" json:"ai_response_id"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (Entry) TableName() string { return "diary_entries" }

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Response types for generated empathy replies.
const (
	ResponseEmpathetic  = "empathetic"
	ResponseSupportive  = "supportive"
	ResponseEncouraging = "encouraging"
)

// AIResponse is a generated empathy reply to one diary entry, produced by
// the worker and linked back via Entry.AIResponseID.
type AIResponse struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            uint64    `gorm:"index;not null" json:"-"`
	EncryptedResponse string    `gorm:"type:text;not null" json:"encrypted_response"`
	ResponseType      string    `gorm:"type:varchar(16);not null" json:"response_type"`
	CreatedAt         time.Time `json:"created_at"`
}

func (AIResponse) TableName() string { return "ai_responses" }

func (r *AIResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
