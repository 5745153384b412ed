package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Karthik0956A/clauseai-2.0/internal/analysis"
	"github.com/Karthik0956A/clauseai-2.0/internal/compose"
	"github.com/Karthik0956A/clauseai-2.0/internal/ingest"
	"github.com/Karthik0956A/clauseai-2.0/internal/models"
	"github.com/Karthik0956A/clauseai-2.0/internal/session"
	"github.com/Karthik0956A/clauseai-2.0/internal/store"
)

// Ingestor turns uploaded files into external document handles.
type Ingestor interface {
	Ingest(ctx context.Context, files []ingest.File) (*models.DocumentRef, error)
}

// Responder produces one conversational inference response.
type Responder interface {
	Respond(ctx context.Context, req compose.Request) (string, error)
}

// Analyzer runs the stateless structured analyses.
type Analyzer interface {
	AssessRisk(ctx context.Context, ref *models.DocumentRef) (*analysis.RiskReport, error)
	DraftSuggestions(ctx context.Context, ref *models.DocumentRef) (*analysis.SuggestionSet, error)
	Compare(ctx context.Context, a, b *models.DocumentRef) (*analysis.Comparison, error)
}

// Handler wires HTTP routes to the stores, the ingestion pipeline, and the
// inference-facing services.
type Handler struct {
	users         *store.UserStore
	conversations *store.ConversationStore
	authority     *session.Authority
	pipeline      Ingestor
	composer      Responder
	analyses      Analyzer
	log           zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(users *store.UserStore, conversations *store.ConversationStore, authority *session.Authority, pipeline Ingestor, composer Responder, analyses Analyzer, log zerolog.Logger) *Handler {
	return &Handler{
		users:         users,
		conversations: conversations,
		authority:     authority,
		pipeline:      pipeline,
		composer:      composer,
		analyses:      analyses,
		log:           log,
	}
}

// RegisterRoutes attaches the access gate and all HTTP routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.authority.Gate(session.PublicPrefixes))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	authRoutes.POST("/signup", h.signup)
	authRoutes.POST("/login", h.login)
	authRoutes.GET("/me", h.me)
	authRoutes.POST("/logout", h.logout)

	api.POST("/chat", h.chat)
	api.POST("/chat/save", h.saveChat)
	api.GET("/chat/history", h.chatHistory)
	api.GET("/chat/:id", h.getConversation)
	api.POST("/upload", h.upload)
	api.POST("/risk", h.risk)
	api.POST("/suggest", h.suggest)
	api.POST("/compare", h.compare)
}

// sessionOwner authenticates the request and resolves the numeric owner id.
func (h *Handler) sessionOwner(c *gin.Context) (*session.Payload, int64, bool) {
	payload, ok := h.authority.RequireSession(c)
	if !ok {
		return nil, 0, false
	}
	ownerID, err := strconv.ParseInt(payload.UserID, 10, 64)
	if err != nil || ownerID <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return nil, 0, false
	}
	return payload, ownerID, true
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		h.log.Error().Err(err).Msg("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    gin.H{"name": user.Name, "email": user.Email},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing credentials"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    gin.H{"name": user.Name, "email": user.Email},
	})
}

func (h *Handler) startSession(c *gin.Context, user *models.User) bool {
	token, err := h.authority.Issue(strconv.FormatInt(user.ID, 10), user.Email, user.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("issue session token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}
	session.SetCookie(c, token, int(h.authority.TokenTTL().Seconds()))
	return true
}

func (h *Handler) me(c *gin.Context) {
	payload, ok := h.authority.RequireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{"name": payload.Name, "email": payload.Email},
	})
}

func (h *Handler) logout(c *gin.Context) {
	session.ClearCookie(c)
	c.Status(http.StatusNoContent)
}

type chatRequest struct {
	Message  string              `json:"message"`
	History  []compose.Turn      `json:"history"`
	File     *models.DocumentRef `json:"file"`
	Audio    *models.DocumentRef `json:"audio"`
	Language string              `json:"language"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	text, err := h.composer.Respond(c.Request.Context(), compose.Request{
		Message:  req.Message,
		History:  req.History,
		File:     req.File,
		Audio:    req.Audio,
		Language: req.Language,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": text})
}

type saveChatRequest struct {
	ConversationID int64               `json:"conversationId"`
	Messages       []models.Message    `json:"messages"`
	Document       *models.DocumentRef `json:"document"`
}

func (h *Handler) saveChat(c *gin.Context) {
	_, ownerID, ok := h.sessionOwner(c)
	if !ok {
		return
	}
	var req saveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conv, err := h.conversations.Save(c.Request.Context(), ownerID, req.ConversationID, req.Messages, req.Document)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyMessages), errors.Is(err, store.ErrInvalidMessages):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		default:
			h.log.Error().Err(err).Int64("conversation_id", req.ConversationID).Msg("save chat failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save chat"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"conversationId": conv.ID,
		"title":          conv.Title,
	})
}

func (h *Handler) chatHistory(c *gin.Context) {
	_, ownerID, ok := h.sessionOwner(c)
	if !ok {
		return
	}
	conversations, err := h.conversations.ListRecent(c.Request.Context(), ownerID, 5)
	if err != nil {
		h.log.Error().Err(err).Msg("fetch history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": conversations,
	})
}

func (h *Handler) getConversation(c *gin.Context) {
	_, ownerID, ok := h.sessionOwner(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		h.log.Error().Err(err).Int64("conversation_id", id).Msg("load conversation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"conversation": conv,
	})
}

const maxUploadBytes = 10 << 20 // 10 MB per file

func (h *Handler) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		file, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
			return
		}
		files = append(files, file)
	}

	ref, err := h.pipeline.Ingest(c.Request.Context(), files)
	if err != nil {
		if errors.Is(err, ingest.ErrNoFiles) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file":    ref,
	})
}

func readUpload(fh *multipart.FileHeader) (ingest.File, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.File{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.File{}, err
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return ingest.File{Name: fh.Filename, MIMEType: mimeType, Data: data}, nil
}

type analysisRequest struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType"`
}

func (h *Handler) risk(c *gin.Context) {
	ref, ok := bindAnalysisTarget(c)
	if !ok {
		return
	}
	data, err := h.analyses.AssessRisk(c.Request.Context(), ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze risk."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) suggest(c *gin.Context) {
	ref, ok := bindAnalysisTarget(c)
	if !ok {
		return
	}
	data, err := h.analyses.DraftSuggestions(c.Request.Context(), ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate suggestions."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func bindAnalysisTarget(c *gin.Context) (*models.DocumentRef, bool) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileURI == "" || req.MimeType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File context is required."})
		return nil, false
	}
	return &models.DocumentRef{URI: req.FileURI, MimeType: req.MimeType}, true
}

func (h *Handler) compare(c *gin.Context) {
	fhA, errA := c.FormFile("fileA")
	fhB, errB := c.FormFile("fileB")
	if errA != nil || errB != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both Agreement A and Agreement B are required."})
		return
	}

	refA, ok := h.ingestSingle(c, fhA)
	if !ok {
		return
	}
	refB, ok := h.ingestSingle(c, fhB)
	if !ok {
		return
	}

	data, err := h.analyses.Compare(c.Request.Context(), refA, refB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare agreements."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) ingestSingle(c *gin.Context, fh *multipart.FileHeader) (*models.DocumentRef, bool) {
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return nil, false
	}
	file, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return nil, false
	}
	ref, err := h.pipeline.Ingest(c.Request.Context(), []ingest.File{file})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare agreements."})
		return nil, false
	}
	return ref, true
}
