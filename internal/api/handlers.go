// Package api exposes the companion backend over HTTP: character CRUD, chat
// (single-shot and SSE streaming), relationship state, and history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"companion/internal/character"
	"companion/internal/chat"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	characters     *character.Manager
	chat           *chat.Service
	logger         *zap.Logger
	requestTimeout time.Duration
}

// NewHandler builds the API handler. requestTimeout bounds a whole chat
// turn, including retries.
func NewHandler(characters *character.Manager, chatSvc *chat.Service, requestTimeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = 180 * time.Second
	}
	return &Handler{
		characters:     characters,
		chat:           chatSvc,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateCharacter stores a new companion profile.
func (h *Handler) CreateCharacter(c *gin.Context) {
	var params character.CreateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	char, err := h.characters.Create(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, char)
}

// ListCharacters returns all stored characters.
func (h *Handler) ListCharacters(c *gin.Context) {
	chars, err := h.characters.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list characters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": chars})
}

// GetCharacter returns one character profile.
func (h *Handler) GetCharacter(c *gin.Context) {
	char, err := h.characters.Get(c.Param("id"))
	if err != nil {
		h.characterError(c, err)
		return
	}
	c.JSON(http.StatusOK, char)
}

// DeleteCharacter removes a character, its ledger, and its history.
func (h *Handler) DeleteCharacter(c *gin.Context) {
	id := c.Param("id")
	if err := h.characters.Delete(id); err != nil {
		h.characterError(c, err)
		return
	}
	if err := h.chat.ClearHistory(id); err != nil {
		h.logger.Warn("failed to clear history on delete",
			zap.String("character_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat runs one single-shot conversation turn.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.chat.ChatWithCharacter(ctx, c.Param("id"), req.Message)
	if err != nil {
		h.characterError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ChatStream runs one conversation turn as a server-sent event stream. Each
// chunk arrives as `data: {"chunk": ...}`; the final event carries done=true
// plus the relationship delta when the turn was scored.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	stream, resultCh, err := h.chat.ChatWithCharacterStream(ctx, c.Param("id"), req.Message)
	if err != nil {
		h.characterError(c, err)
		return
	}

	sseHeaders(c)
	for chunk := range stream {
		writeSSE(c, gin.H{"chunk": chunk})
	}

	done := gin.H{"done": true}
	if result := <-resultCh; result != nil {
		done["relationship"] = result
	}
	writeSSE(c, done)
}

// PlainChat runs one character-less turn against the shared transcript.
func (h *Handler) PlainChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	reply, err := h.chat.Chat(ctx, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// PlainChatStream is the SSE variant of PlainChat.
func (h *Handler) PlainChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	sseHeaders(c)
	for chunk := range h.chat.ChatStream(ctx, req.Message) {
		writeSSE(c, gin.H{"chunk": chunk})
	}
	writeSSE(c, gin.H{"done": true})
}

// GetGlobalHistory returns the character-less transcript.
func (h *Handler) GetGlobalHistory(c *gin.Context) {
	entries, err := h.chat.GlobalHistory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ClearGlobalHistory wipes the character-less transcript.
func (h *Handler) ClearGlobalHistory(c *gin.Context) {
	if err := h.chat.ClearGlobalHistory(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func sseHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()
}

func writeSSE(c *gin.Context, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

// GetRelationship returns the relationship summary for a character.
func (h *Handler) GetRelationship(c *gin.Context) {
	if _, err := h.characters.Get(c.Param("id")); err != nil {
		h.characterError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.chat.Relationship(c.Param("id")))
}

type emotionalMomentRequest struct {
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
	Intensity   int    `json:"intensity"`
}

// RecordEmotionalMoment logs an emotional moment against a character.
func (h *Handler) RecordEmotionalMoment(c *gin.Context) {
	var req emotionalMomentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	if _, err := h.characters.Get(c.Param("id")); err != nil {
		h.characterError(c, err)
		return
	}
	m := h.chat.RecordEmotionalMoment(c.Param("id"), req.Type, req.Description, req.Intensity)
	c.JSON(http.StatusOK, m)
}

// GetHistory returns a character's conversation transcript.
func (h *Handler) GetHistory(c *gin.Context) {
	entries, err := h.chat.History(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ClearHistory wipes a character's conversation transcript.
func (h *Handler) ClearHistory(c *gin.Context) {
	if err := h.chat.ClearHistory(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": c.Param("id")})
}

func (h *Handler) characterError(c *gin.Context, err error) {
	if errors.Is(err, character.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
