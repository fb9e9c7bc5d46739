package diary

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateEntry(ctx context.Context, e *Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntries returns the owner's entries newest first.
func (r *Repo) ListEntries(ctx context.Context, userID uint64) ([]Entry, error) {
	var out []Entry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEntry is the full-field edit: title, content and tags move together,
// and updated_at advances.
func (r *Repo) UpdateEntry(ctx context.Context, id string, title *string, content string, tags []string) error {
	return r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"encrypted_title":   title,
			"encrypted_content": content,
			"emotion_tags":      datatypes.NewJSONSlice(tags),
			"updated_at":        time.Now(),
		}).Error
}

func (r *Repo) DeleteEntry(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Entry{}).Error
}

func (r *Repo) CreateResponse(ctx context.Context, resp *AIResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *Repo) GetResponse(ctx context.Context, id string) (*AIResponse, error) {
	var resp AIResponse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resp).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkResponse points an entry at its generated empathy reply.
func (r *Repo) LinkResponse(ctx context.Context, entryID, responseID string) error {
	return r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", entryID).
		Update("ai_response_id", responseID).Error
}

// EmpathyJob CRUD

func (r *Repo) CreateJob(ctx context.Context, job *EmpathyJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*EmpathyJob, error) {
	var j EmpathyJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&EmpathyJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, responseID string) error {
	return r.db.WithContext(ctx).Model(&EmpathyJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             JobSucceeded,
			"result_response_id": responseID,
			"error":              nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&EmpathyJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             JobFailed,
			"error":              errMsg,
			"result_response_id": nil,
		}).Error
}
