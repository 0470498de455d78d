// Package storetest is an in-process implementation of the external
// message store contract, used by the pipeline tests and the demo
// binary. It speaks the same wire protocol as a production store:
// placeholder registration, one-time upload targets, confirmation,
// sends with correlation-token echo, and a live websocket feed.
package storetest

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/openteam-dev/openteam-go/internal/markdown"
	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
	internal_errors "github.com/openteam-dev/openteam-go/shared/errors"
	"github.com/openteam-dev/openteam-go/shared/jwt"
	"github.com/openteam-dev/openteam-go/shared/utils"
)

// Server is the fake store. Zero value is not usable; construct with New.
type Server struct {
	jwt      jwt.JwtService
	renderer *markdown.TextProcessor
	storage  *storage
	hub      *hub
	router   chi.Router

	// Failure injection for tests. All default to off.
	failUploads  atomic.Bool
	failConfirms atomic.Bool
	failSends    atomic.Bool
}

const jwtTTL = 24 * time.Hour

// New builds a fake store with its own signing key.
func New() *Server {
	s := &Server{
		jwt:      jwt.New(uuid.New().String(), jwtTTL),
		renderer: markdown.New(),
		storage:  newStorage(),
		hub:      newHub(),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the store's HTTP surface, typically mounted on an
// httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// TokenFor issues an access token for the given identity.
func (s *Server) TokenFor(user domain.User) string {
	token, err := s.jwt.NewToken(user)
	if err != nil {
		panic("storetest: failed to issue token: " + err.Error())
	}
	return token
}

// FailUploads makes byte uploads return 500 until disabled.
func (s *Server) FailUploads(fail bool) { s.failUploads.Store(fail) }

// FailConfirms makes attachment confirmation return 500 until disabled.
func (s *Server) FailConfirms(fail bool) { s.failConfirms.Store(fail) }

// FailSends makes message sends return 500 until disabled.
func (s *Server) FailSends(fail bool) { s.failSends.Store(fail) }

// Messages returns the persisted records for a target, newest-first.
func (s *Server) Messages(target domain.TargetContext) []domain.Message {
	msgs, _, _ := s.storage.page(target, time.Time{}, 0)
	return msgs
}

// HasFile reports whether a placeholder record still exists.
func (s *Server) HasFile(id domain.RemoteId) bool {
	_, ok := s.storage.file(id)
	return ok
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	// The one-time upload target skips cookie auth: its URL is the
	// credential, like a signed storage URL.
	r.Post("/v1/upload/{token}", s.handleUpload)

	r.Group(func(r chi.Router) {
		r.Use(s.needAuth)
		r.Post("/v1/files", s.handleRegisterFile)
		r.Post("/v1/files/upload-url", s.handleUploadUrl)
		r.Patch("/v1/files/{id}", s.handleConfirmFile)
		r.Delete("/v1/files/{id}", s.handleDeleteFile)
		r.Post("/v1/messages", s.handleSendMessage)
		r.Get("/v1/messages", s.handleListMessages)
		r.Get("/v1/me", s.handleMe)
		r.Get("/v1/channels/{channel}/live", s.handleLive)
		r.Get("/v1/blobs/{ref}", s.handleBlob)
	})
	return r
}

type ctxKey int

const userKey ctxKey = 0

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func userFrom(ctx context.Context) *domain.User {
	return ctx.Value(userKey).(*domain.User)
}

func (s *Server) needAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("accessToken")
		if err != nil {
			utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Missing access token", StatusCode: http.StatusUnauthorized})
			return
		}
		user, err := s.jwt.DecodeUser(cookie.Value)
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) handleRegisterFile(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterAttachmentRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	f := &fileRecord{
		Id:          uuid.New().String(),
		Name:        req.Name,
		ContentType: req.ContentType,
		PreviewUrl:  req.PreviewUrl,
		Correlation: req.Correlation,
	}
	s.storage.putFile(f)

	utils.WriteJSON(w, http.StatusCreated, api.RegisterAttachmentResponse{Id: f.Id})
}

func (s *Server) handleUploadUrl(w http.ResponseWriter, r *http.Request) {
	token := uuid.New().String()
	s.storage.issueUploadToken(token)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	utils.WriteJSON(w, http.StatusOK, api.UploadTargetResponse{
		UploadUrl: scheme + "://" + r.Host + "/v1/upload/" + token,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.failUploads.Load() {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	token := chi.URLParam(r, "token")
	if !s.storage.consumeUploadToken(token) {
		http.Error(w, "unknown or spent upload token", http.StatusForbidden)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		http.Error(w, "empty upload", http.StatusBadRequest)
		return
	}

	ref := "storage/" + uuid.New().String()
	s.storage.putBlob(ref, r.Header.Get("Content-Type"), payload)
	utils.WriteJSON(w, http.StatusOK, api.UploadResponse{StorageRef: ref})
}

func (s *Server) handleConfirmFile(w http.ResponseWriter, r *http.Request) {
	if s.failConfirms.Load() {
		http.Error(w, "store rejected confirmation", http.StatusInternalServerError)
		return
	}

	var req api.ConfirmAttachmentRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	f, ok := s.storage.file(id)
	if !ok {
		http.Error(w, "unknown file", http.StatusNotFound)
		return
	}
	if _, _, ok := s.storage.blob(req.StorageRef); !ok {
		http.Error(w, "unknown storage reference", http.StatusBadRequest)
		return
	}

	f.StorageRef = req.StorageRef
	s.storage.putFile(f)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if !s.storage.deleteFile(chi.URLParam(r, "id")) {
		http.Error(w, "unknown file", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if s.failSends.Load() {
		http.Error(w, "store rejected message", http.StatusInternalServerError)
		return
	}

	var req api.SendMessageRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	user := userFrom(r.Context())

	attachments := make([]domain.AttachmentRecord, 0, len(req.AttachmentIds))
	for _, id := range req.AttachmentIds {
		f, ok := s.storage.file(id)
		if !ok {
			http.Error(w, "unknown attachment: "+id, http.StatusBadRequest)
			return
		}
		if f.StorageRef == "" {
			http.Error(w, "attachment not stored: "+id, http.StatusBadRequest)
			return
		}
		attachments = append(attachments, domain.AttachmentRecord{
			Id:          f.Id,
			Name:        f.Name,
			ContentType: f.ContentType,
			PreviewUrl:  "/v1/blobs/" + strings.TrimPrefix(f.StorageRef, "storage/"),
			StorageRef:  f.StorageRef,
		})
	}

	html, _ := s.renderer.ProcessMessage(req.Text)
	record := domain.Message{
		Id:            uuid.New().String(),
		Channel:       req.Channel,
		ParentMessage: req.ParentMessage,
		Author:        *user,
		Text:          req.Text,
		Html:          html,
		Attachments:   attachments,
		CreatedAt:     time.Now(),
		Correlation:   req.Correlation,
	}
	s.storage.appendMessage(record)
	s.hub.broadcast(record)

	utils.WriteJSON(w, http.StatusCreated, api.MessageResponse{Message: record})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	target := domain.TargetContext{
		Channel:       r.URL.Query().Get("channel"),
		ParentMessage: r.URL.Query().Get("parent"),
	}
	if target.Channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	var cursor time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	msgs, next, hasMore := s.storage.page(target, cursor, limit)
	page := api.MessagePage{Messages: msgs, HasMore: hasMore}
	if hasMore {
		page.Cursor = next.Format(time.RFC3339Nano)
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, userFrom(r.Context()))
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	ref := "storage/" + chi.URLParam(r, "ref")
	payload, contentType, ok := s.storage.blob(ref)
	if !ok {
		http.Error(w, "unknown blob", http.StatusNotFound)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = w.Write(payload)
}
