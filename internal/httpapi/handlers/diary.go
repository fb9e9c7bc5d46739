package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kokoro-apps/empathy-diary/internal/common"
	"github.com/kokoro-apps/empathy-diary/internal/diary"
	"gorm.io/gorm"
)

type entryReq struct {
	Title       string   `json:"title"`
	Content     string   `json:"content" binding:"required"`
	EmotionTags []string `json:"emotion_tags"`
}

func (h *Handler) CreateDiaryEntry(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req entryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	entry, err := h.DiarySvc.CreateEntry(c.Request.Context(), uid, req.Title, req.Content, req.EmotionTags)
	if err != nil {
		if errors.Is(err, diary.ErrContentRequired) {
			common.Fail(c, http.StatusBadRequest, 10004, "content is required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to save entry")
		return
	}

	common.Ok(c, entry)
}

func (h *Handler) ListDiaryEntries(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	entries, err := h.DiarySvc.ListEntries(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list entries")
		return
	}
	common.Ok(c, gin.H{"entries": entries})
}

func (h *Handler) UpdateDiaryEntry(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req entryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	err := h.DiarySvc.UpdateEntry(c.Request.Context(), uid, c.Param("id"), req.Title, req.Content, req.EmotionTags)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40005, "entry not found")
			return
		}
		if errors.Is(err, diary.ErrContentRequired) {
			common.Fail(c, http.StatusBadRequest, 10004, "content is required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to update entry")
		return
	}
	common.Ok(c, nil)
}

func (h *Handler) DeleteDiaryEntry(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.DiarySvc.DeleteEntry(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40005, "entry not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to delete entry")
		return
	}
	common.Ok(c, nil)
}

// RequestEmpathyReply queues async empathy-reply generation for an entry.
func (h *Handler) RequestEmpathyReply(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	job, err := h.DiarySvc.RequestEmpathyReply(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40005, "entry not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to queue empathy reply")
		return
	}
	common.Ok(c, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetEmpathyJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	job, err := h.DiarySvc.GetJob(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40006, "job not found")
		return
	}
	common.Ok(c, job)
}

func (h *Handler) GetAIResponse(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	resp, err := h.DiarySvc.GetResponse(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40007, "response not found")
		return
	}
	common.Ok(c, resp)
}
