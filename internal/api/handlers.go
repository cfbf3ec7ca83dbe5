package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davidahmann/cardkit/internal/auth"
	"github.com/davidahmann/cardkit/internal/cardmanager"
	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/internal/metrics"
	"github.com/davidahmann/cardkit/internal/pack"
	"github.com/davidahmann/cardkit/internal/slack"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

type Handler struct {
	Auth    auth.Authenticator
	Manager *cardmanager.Manager
	Slack   *slack.InteractionHandler
	Metrics *metrics.Collectors
	Limiter *RateLimiter
	Log     *logger.Logger
}

func (h *Handler) log() *logger.Logger {
	if h.Log == nil {
		return logger.Nop()
	}
	return h.Log
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SlackInteractions(c *gin.Context) {
	if h.Slack == nil {
		respondError(c, http.StatusNotImplemented, "not_implemented", errors.New("slack interactions not configured"))
		return
	}
	h.Slack.HandleInteractions(c.Writer, c.Request)
}

func (h *Handler) GetPolicy(c *gin.Context) {
	cfg := h.Manager.Policy()
	hash, err := cfg.Hash()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": cfg, "hash": hash})
}

type entryRequest struct {
	Kind    string          `json:"kind" binding:"required"`
	Value   json.RawMessage `json:"value" binding:"required"`
	Options dataid.Options  `json:"options"`
}

type idsResponse struct {
	Value any             `json:"value,omitempty"`
	IDs   []dataid.DataID `json:"ids"`
}

func (h *Handler) AssignIDs(c *gin.Context) {
	req, entry, kind, ok := decodeEntry(c)
	if !ok {
		return
	}
	if err := req.Options.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_options", err)
		return
	}
	out, err := cardtree.AssignIDs(entry, kind, req.Options)
	if err != nil {
		respondCardtreeError(c, err)
		return
	}
	ids, err := cardtree.ExtractIDs(out, kind)
	if err != nil {
		respondCardtreeError(c, err)
		return
	}
	for _, scope := range dataid.Scopes() {
		h.Metrics.IDsAssigned(string(scope), len(ids.Values(scope)))
	}
	c.JSON(http.StatusOK, idsResponse{Value: out, IDs: ids.Slice()})
}

func (h *Handler) ExtractIDs(c *gin.Context) {
	_, entry, kind, ok := decodeEntry(c)
	if !ok {
		return
	}
	ids, err := cardtree.ExtractIDs(entry, kind)
	if err != nil {
		respondCardtreeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idsResponse{IDs: ids.Slice()})
}

func decodeEntry(c *gin.Context) (entryRequest, any, cardtree.Kind, bool) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return req, nil, cardtree.KindInvalid, false
	}
	kind, ok := cardtree.ParseKind(req.Kind)
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid_kind", fmt.Errorf("unknown kind %q", req.Kind))
		return req, nil, cardtree.KindInvalid, false
	}
	entry, err := cardtree.DecodeEntry(kind, req.Value)
	if err != nil {
		respondCardtreeError(c, err)
		return req, nil, kind, false
	}
	return req, entry, kind, true
}

func conversationRef(c *gin.Context) types.ConversationRef {
	return types.ConversationRef{
		ChannelID:      c.Param("channel"),
		ConversationID: c.Param("conversation"),
	}
}

func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.Manager.Record(c.Request.Context(), conversationRef(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "store_error", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.Manager.SavedMessages(c.Request.Context(), conversationRef(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "store_error", err)
		return
	}
	if msgs == nil {
		msgs = []tracking.SavedMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ExportPack streams the conversation's record, saved messages and the
// policy in effect as a checksummed zip.
func (h *Handler) ExportPack(c *gin.Context) {
	conv := conversationRef(c)
	rec, err := h.Manager.Record(c.Request.Context(), conv)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "store_error", err)
		return
	}
	data, err := pack.BuildZip(pack.Input{Conversation: conv, Record: rec, Policy: h.Manager.Policy()})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cardkit-%s-%s.zip"`, conv.ChannelID, conv.ConversationID))
	c.Data(http.StatusOK, "application/zip", data)
}

type idsRequest struct {
	IDs []dataid.DataID `json:"ids" binding:"required,min=1,dive"`
}

func (h *Handler) EnableIDs(c *gin.Context) {
	h.changeIDs(c, h.Manager.EnableIDs)
}

func (h *Handler) DisableIDs(c *gin.Context) {
	h.changeIDs(c, h.Manager.DisableIDs)
}

type idsChange func(ctx context.Context, conv types.ConversationRef, ids ...dataid.DataID) (tracking.Record, error)

func (h *Handler) changeIDs(c *gin.Context, change idsChange) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	for _, id := range req.IDs {
		if !id.Scope.Valid() || id.Value == "" {
			respondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid id %q", id.String()))
			return
		}
	}
	rec, err := change(c.Request.Context(), conversationRef(c), req.IDs...)
	if err != nil {
		respondError(c, statusForStoreError(err), "store_error", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ClearIDs(c *gin.Context) {
	var scopes []dataid.Scope
	for _, raw := range c.QueryArray("scope") {
		scope, err := dataid.ParseScope(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_scope", err)
			return
		}
		scopes = append(scopes, scope)
	}
	rec, err := h.Manager.ClearIDs(c.Request.Context(), conversationRef(c), scopes...)
	if err != nil {
		respondError(c, statusForStoreError(err), "store_error", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type sendRequest struct {
	Messages []types.Message `json:"messages" binding:"required,min=1"`
}

// SendMessages runs a batch through the outgoing pipeline of the
// conversation's channel.
func (h *Handler) SendMessages(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sent, err := h.Manager.Send(c.Request.Context(), conversationRef(c), req.Messages)
	if err != nil && sent != nil {
		// delivered but not recorded; the caller still needs the provider ids
		h.log().Warn("sent messages not recorded", "channel", c.Param("channel"), "error", err)
		c.JSON(statusForStoreError(err), gin.H{
			"error":    apiError{Message: err.Error(), Code: "store_error"},
			"messages": sent,
		})
		return
	}
	if err != nil {
		h.respondManagerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": sent})
}

func (h *Handler) UpdateMessage(c *gin.Context) {
	var msg types.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	msg.ID = c.Param("id")
	updated, err := h.Manager.Update(c.Request.Context(), conversationRef(c), msg)
	if err != nil && updated.ID != "" {
		h.log().Warn("updated message not recorded", "channel", c.Param("channel"), "error", err)
		c.JSON(statusForStoreError(err), gin.H{
			"error":   apiError{Message: err.Error(), Code: "store_error"},
			"message": updated,
		})
		return
	}
	if err != nil {
		h.respondManagerError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.Manager.Delete(c.Request.Context(), conversationRef(c), c.Param("id")); err != nil {
		h.respondManagerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondManagerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cardmanager.ErrUnknownChannel):
		respondError(c, http.StatusNotFound, "unknown_channel", err)
	case errors.Is(err, cardmanager.ErrMissingMessageID):
		respondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, cardtree.ErrConfig), errors.Is(err, cardtree.ErrData):
		respondCardtreeError(c, err)
	case errors.Is(err, tracking.ErrConflict), errors.Is(err, cardmanager.ErrRecord):
		respondError(c, statusForStoreError(err), "store_error", err)
	default:
		h.log().Warn("channel call failed", "channel", c.Param("channel"), "error", err)
		respondError(c, http.StatusBadGateway, "channel_error", err)
	}
}

func statusForStoreError(err error) int {
	if errors.Is(err, tracking.ErrConflict) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondCardtreeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cardtree.ErrConfig):
		respondError(c, http.StatusBadRequest, "config_error", err)
	case errors.Is(err, cardtree.ErrData):
		respondError(c, http.StatusUnprocessableEntity, "data_error", err)
	default:
		respondError(c, http.StatusInternalServerError, "internal", err)
	}
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": apiError{Message: msg, Code: code}})
}
