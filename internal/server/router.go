package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/auth"
	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
	"github.com/MarcoPoloResearchLab/redline/internal/textdiff"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ownerIDContextKey        = "redline_owner_id"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSessionsService  = errors.New("sessions service dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.Session, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	SessionsService   *sessions.Service
	Realtime          *RealtimeDispatcher
	Logger            *zap.Logger
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.SessionsService == nil {
		return nil, errMissingSessionsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		validator: deps.SessionValidator,
		sessions:  deps.SessionsService,
		realtime:  realtime,
		logger:    logger,
		heartbeat: heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/documents")
	protected.Use(handler.authorizeRequest)
	protected.POST("", handler.handleOpenDocument)
	protected.GET("", handler.handleListDocuments)
	protected.GET("/:id", handler.handleGetDocument)
	protected.DELETE("/:id", handler.handleDiscardDocument)
	protected.PUT("/:id/suggestions", handler.handleReplaceSuggestions)
	protected.POST("/:id/suggestions/accept-all", handler.handleAcceptAll)
	protected.POST("/:id/suggestions/reject-all", handler.handleRejectAll)
	protected.POST("/:id/suggestions/:sid/:action", handler.handleTransition)
	protected.GET("/:id/edited", handler.handleEdited)
	protected.GET("/:id/diff", handler.handleDiff)
	protected.GET("/:id/stream", handler.handleStream)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	validator SessionValidator
	sessions  *sessions.Service
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
	heartbeat time.Duration
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type openDocumentRequest struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	Content   string `json:"content"`
	SizeBytes int64  `json:"size_bytes"`
}

func (h *httpHandler) handleOpenDocument(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var request openDocumentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	snapshot, err := h.sessions.Open(c.Request.Context(), owner, documents.Upload{
		Name:      request.Name,
		MimeType:  request.MimeType,
		Content:   request.Content,
		SizeBytes: request.SizeBytes,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSnapshotPayload(snapshot))
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	summaries, err := h.sessions.List(c.Request.Context(), owner)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := listResponsePayload{Documents: make([]summaryPayload, 0, len(summaries))}
	for _, summary := range summaries {
		response.Documents = append(response.Documents, summaryPayload{
			Document:         newDocumentPayload(summary.Document),
			Progress:         newProgressPayload(summary.Progress),
			UpdatedAtSeconds: summary.UpdatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	snapshot, err := h.sessions.Get(c.Request.Context(), owner, documentID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotPayload(snapshot))
}

func (h *httpHandler) handleDiscardDocument(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	if err := h.sessions.Discard(c.Request.Context(), owner, documentID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type replaceSuggestionsRequest struct {
	Suggestions []suggestionPayload `json:"suggestions"`
}

func (h *httpHandler) handleReplaceSuggestions(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	var request replaceSuggestionsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	suggestions := make([]review.Suggestion, 0, len(request.Suggestions))
	for _, payload := range request.Suggestions {
		suggestions = append(suggestions, payload.suggestion())
	}
	snapshot, err := h.sessions.ReplaceSuggestions(c.Request.Context(), owner, documentID, suggestions)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotPayload(snapshot))
}

type transitionResponse struct {
	ID       string `json:"id"`
	Found    bool   `json:"found"`
	Changed  bool   `json:"changed"`
	Previous string `json:"previous,omitempty"`
	State    string `json:"state,omitempty"`
}

func (h *httpHandler) handleTransition(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	action, err := sessions.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_action"})
		return
	}

	result, err := h.sessions.Transition(c.Request.Context(), owner, documentID, c.Param("sid"), action)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionResponse{
		ID:       result.ID,
		Found:    result.Found,
		Changed:  result.Changed(),
		Previous: string(result.Previous),
		State:    string(result.Current),
	})
}

func (h *httpHandler) handleAcceptAll(c *gin.Context) {
	h.handleResolvePending(c, h.sessions.AcceptAll)
}

func (h *httpHandler) handleRejectAll(c *gin.Context) {
	h.handleResolvePending(c, h.sessions.RejectAll)
}

func (h *httpHandler) handleResolvePending(c *gin.Context, resolve func(ctx context.Context, owner sessions.OwnerID, documentID documents.DocumentID) ([]string, error)) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	changed, err := resolve(c.Request.Context(), owner, documentID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

type editedResponse struct {
	Edited   string           `json:"edited"`
	Overlaps []overlapPayload `json:"overlaps"`
}

func (h *httpHandler) handleEdited(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	reconstruction, err := h.sessions.Reconstruct(c.Request.Context(), owner, documentID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, editedResponse{
		Edited:   reconstruction.Edited,
		Overlaps: newOverlapPayloads(reconstruction.Overlaps),
	})
}

type segmentPayload struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type diffResponse struct {
	Segments []segmentPayload `json:"segments"`
	Summary  struct {
		UnchangedWords int `json:"unchanged_words"`
		InsertedWords  int `json:"inserted_words"`
		RemovedWords   int `json:"removed_words"`
	} `json:"summary"`
	TooLarge bool `json:"too_large"`
}

func (h *httpHandler) handleDiff(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	diff, err := h.sessions.Diff(c.Request.Context(), owner, documentID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := newDiffResponse(diff.Segments, diff.Summary)
	response.TooLarge = diff.TooLarge
	c.JSON(http.StatusOK, response)
}

func newDiffResponse(segments []textdiff.Segment, summary textdiff.Summary) diffResponse {
	response := diffResponse{Segments: make([]segmentPayload, 0, len(segments))}
	for _, segment := range segments {
		response.Segments = append(response.Segments, segmentPayload{Text: segment.Text, Kind: string(segment.Kind)})
	}
	response.Summary.UnchangedWords = summary.UnchangedWords
	response.Summary.InsertedWords = summary.InsertedWords
	response.Summary.RemovedWords = summary.RemovedWords
	return response
}

type streamEventPayload struct {
	DocumentID    string   `json:"document_id"`
	SuggestionIDs []string `json:"suggestion_ids,omitempty"`
	Timestamp     int64    `json:"timestamp"`
	Source        string   `json:"source"`
}

func (h *httpHandler) handleStream(c *gin.Context) {
	owner, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.sessions.Get(ctx, owner, documentID); err != nil {
		h.writeServiceError(c, err)
		return
	}

	stream, cleanup := h.realtime.Subscribe(ctx, owner.String())
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(realtimeEventReady, streamEventPayload{
		DocumentID: documentID.String(),
		Timestamp:  time.Now().UTC().Unix(),
		Source:     realtimeSourceBackend,
	})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, open := <-stream:
			if !open {
				return false
			}
			if message.DocumentID != documentID.String() {
				return true
			}
			c.SSEvent(message.EventType, streamEventPayload{
				DocumentID:    message.DocumentID,
				SuggestionIDs: message.SuggestionIDs,
				Timestamp:     message.Timestamp.Unix(),
				Source:        realtimeSourceBackend,
			})
			return message.EventType != string(sessions.EventDocumentDiscarded)
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, streamEventPayload{
				DocumentID: documentID.String(),
				Timestamp:  tick.UTC().Unix(),
				Source:     realtimeSourceBackend,
			})
			return true
		}
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	session, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(ownerIDContextKey, session.Owner)
	c.Next()
}

func (h *httpHandler) owner(c *gin.Context) (sessions.OwnerID, bool) {
	value, _ := c.Get(ownerIDContextKey)
	owner, _ := value.(sessions.OwnerID)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return owner, true
}

func (h *httpHandler) documentScope(c *gin.Context) (sessions.OwnerID, documents.DocumentID, bool) {
	owner, ok := h.owner(c)
	if !ok {
		return "", "", false
	}
	documentID, err := documents.NewDocumentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_document_id"})
		return "", "", false
	}
	return owner, documentID, true
}

func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	code := "internal_error"
	var serviceErr *sessions.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	switch {
	case errors.Is(err, sessions.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document_not_found", "code": code})
	case errors.Is(err, review.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_suggestions", "code": code, "detail": validationDetail(err)})
	case errors.Is(err, documents.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported_format", "code": code})
	case errors.Is(err, documents.ErrInvalidUpload), errors.Is(err, documents.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_upload", "code": code})
	case errors.Is(err, sessions.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action", "code": code})
	default:
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request_failed", "code": code})
	}
}

func validationDetail(err error) gin.H {
	var validationErr *review.ValidationError
	if !errors.As(err, &validationErr) {
		return gin.H{"reason": err.Error()}
	}
	return gin.H{
		"index":         validationErr.Index,
		"suggestion_id": validationErr.SuggestionID,
		"reason":        validationErr.Reason,
	}
}
