package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kokoro-apps/empathy-diary/internal/chat"
	"github.com/kokoro-apps/empathy-diary/internal/common"
)

// sendLockTTL covers the longest expected provider call.
const sendLockTTL = 90 * time.Second

type createSessionReq struct {
	FirstMessage string `json:"first_message"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid, req.FirstMessage)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.Ok(c, sess)
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessions, err := h.ChatSvc.ListSessions(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list sessions")
		return
	}
	common.Ok(c, gin.H{"sessions": sessions})
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.ChatSvc.DeleteSession(c.Request.Context(), uid, c.Param("session_id")); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50008, "failed to delete session")
		return
	}
	common.Ok(c, nil)
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()

	// One outstanding send per session; a second concurrent send is rejected
	// the way the UI disables its input. An acquire error degrades to no
	// exclusion and must not release a lock this request never took.
	token, err := h.Locks.AcquireSendLock(ctx, req.SessionID, sendLockTTL)
	if err != nil {
		log.Printf("send lock: %v", err)
	} else if token == "" {
		common.Fail(c, http.StatusConflict, 40901, "a reply is already being generated")
		return
	} else {
		defer func() {
			if err := h.Locks.ReleaseSendLock(ctx, req.SessionID, token); err != nil {
				log.Printf("send unlock: %v", err)
			}
		}()
	}

	reply, err := h.ChatSvc.SendMessage(ctx, uid, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusBadGateway, 50009, "failed to generate reply")
		return
	}

	common.Ok(c, gin.H{
		"session_id": req.SessionID,
		"reply":      reply,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	msgs, err := h.ChatSvc.History(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}
	common.Ok(c, gin.H{"messages": msgs})
}

type quoteReq struct {
	Content string `json:"content" binding:"required"`
}

// StartQuotedConversation seeds a new conversation from a quoted diary text:
// one session, the quoted user message and the assistant reply.
func (h *Handler) StartQuotedConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv := chat.NewConversation(h.ChatSvc, h.DiarySvc, uid)
	if err := conv.Quote(c.Request.Context(), req.Content); err != nil {
		common.Fail(c, http.StatusBadGateway, 50009, "failed to generate reply")
		return
	}

	resp := gin.H{"messages": conv.Messages()}
	if sess := conv.Session(); sess != nil {
		resp["session_id"] = sess.SessionID
	}
	common.Ok(c, resp)
}

type saveConversationReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

// SaveConversationAsDiary replays a stored session into a conversation and
// writes the transcript back as one diary entry.
func (h *Handler) SaveConversationAsDiary(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req saveConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()
	conv := chat.NewConversation(h.ChatSvc, h.DiarySvc, uid)
	if err := conv.LoadSession(ctx, req.SessionID); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load session")
		return
	}

	if err := conv.SaveConversationAsDiary(ctx); err != nil {
		if errors.Is(err, chat.ErrEmptyConversation) {
			common.Fail(c, http.StatusBadRequest, 10005, "conversation is empty")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to save entry")
		return
	}
	common.Ok(c, nil)
}

type saveMessageReq struct {
	Content string `json:"content" binding:"required"`
}

// SaveMessageAsDiary writes one assistant reply back as a diary entry.
func (h *Handler) SaveMessageAsDiary(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req saveMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv := chat.NewConversation(h.ChatSvc, h.DiarySvc, uid)
	if err := conv.SaveMessageAsDiary(c.Request.Context(), req.Content); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to save entry")
		return
	}
	common.Ok(c, nil)
}
