package diary

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlaceholderTitle is stored when an entry is submitted without a title.
const PlaceholderTitle = "無題の日記"

var (
	ErrContentRequired = errors.New("diary: content is required")
	ErrEntryNotFound   = gorm.ErrRecordNotFound
)

// JobPublisher hands an empathy job id to the queue. The rabbitmq publisher
// implements it; a nil publisher disables empathy replies.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Service struct {
	repo      *Repo
	provider  ai.Provider
	publisher JobPublisher
}

func NewService(repo *Repo, provider ai.Provider, publisher JobPublisher) *Service {
	return &Service{repo: repo, provider: provider, publisher: publisher}
}

func newJobID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateEntry validates and stores a new diary entry. An absent title gets
// the placeholder.
func (s *Service) CreateEntry(ctx context.Context, userID uint64, title, content string, tags []string) (*Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle
	}

	e := &Entry{
		UserID:           userID,
		EncryptedTitle:   &title,
		EncryptedContent: content,
		EmotionTags:      datatypes.NewJSONSlice(tags),
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SaveEntry is the conversation save-back target (chat.DiarySaver).
func (s *Service) SaveEntry(ctx context.Context, userID uint64, title, content string, tags []string) error {
	_, err := s.CreateEntry(ctx, userID, title, content, tags)
	return err
}

func (s *Service) ListEntries(ctx context.Context, userID uint64) ([]Entry, error) {
	return s.repo.ListEntries(ctx, userID)
}

func (s *Service) GetEntry(ctx context.Context, userID uint64, id string) (*Entry, error) {
	return s.ownedEntry(ctx, userID, id)
}

// UpdateEntry edits title, content and tags together.
func (s *Service) UpdateEntry(ctx context.Context, userID uint64, id, title, content string, tags []string) error {
	if _, err := s.ownedEntry(ctx, userID, id); err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrContentRequired
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle
	}
	return s.repo.UpdateEntry(ctx, id, &title, content, tags)
}

// DeleteEntry removes an entry irreversibly.
func (s *Service) DeleteEntry(ctx context.Context, userID uint64, id string) error {
	if _, err := s.ownedEntry(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.DeleteEntry(ctx, id)
}

func (s *Service) GetResponse(ctx context.Context, userID uint64, id string) (*AIResponse, error) {
	resp, err := s.repo.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return resp, nil
}

// RequestEmpathyReply queues empathy-reply generation for an owned entry.
func (s *Service) RequestEmpathyReply(ctx context.Context, userID uint64, entryID string) (*EmpathyJob, error) {
	if s.publisher == nil {
		return nil, errors.New("diary: empathy replies are not configured")
	}
	if _, err := s.ownedEntry(ctx, userID, entryID); err != nil {
		return nil, err
	}

	id, err := newJobID()
	if err != nil {
		return nil, err
	}
	job := &EmpathyJob{
		ID:      id,
		UserID:  userID,
		EntryID: entryID,
		Status:  JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, job.ID, err.Error())
		return nil, err
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*EmpathyJob, error) {
	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

// ProcessEmpathyJob is the worker side: generate the empathy reply for the
// job's entry, store it as an AIResponse and link it back.
func (s *Service) ProcessEmpathyJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	entry, err := s.repo.GetEntry(ctx, job.EntryID)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	reply, err := s.provider.Chat(ctx, ai.EmpathyPrompt(entry.EncryptedContent), ai.EmpathyOptions)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	resp := &AIResponse{
		UserID:            job.UserID,
		EncryptedResponse: reply,
		ResponseType:      ResponseEmpathetic,
	}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	if err := s.repo.LinkResponse(ctx, entry.ID, resp.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return s.repo.MarkJobSucceeded(ctx, jobID, resp.ID)
}

func (s *Service) ownedEntry(ctx context.Context, userID uint64, id string) (*Entry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrEntryNotFound
	}
	return e, nil
}
