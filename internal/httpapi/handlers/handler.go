package handlers

import (
	"context"
	"time"

	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"github.com/kokoro-apps/empathy-diary/internal/chat"
	"github.com/kokoro-apps/empathy-diary/internal/config"
	"github.com/kokoro-apps/empathy-diary/internal/diary"
	"gorm.io/gorm"
)

// SendLocker is the per-session send exclusion. The redis store implements
// it; tests substitute a fake.
type SendLocker interface {
	AcquireSendLock(ctx context.Context, sessionID string, ttl time.Duration) (string, error)
	ReleaseSendLock(ctx context.Context, sessionID, token string) error
}

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Locks    SendLocker
	ChatSvc  *chat.Service
	DiarySvc *diary.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, locks SendLocker, provider ai.Provider, publisher diary.JobPublisher) *Handler {
	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Locks:    locks,
		ChatSvc:  chat.NewService(chat.NewRepo(db), provider),
		DiarySvc: diary.NewService(diary.NewRepo(db), provider, publisher),
	}
}
