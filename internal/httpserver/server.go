package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/finchsocial/finch/internal/config"
	"github.com/finchsocial/finch/internal/domain"
)

// Server is the HTTP server exposing the feed, toggle, profile, and
// search endpoints.
type Server struct {
	cfg        *config.Config
	svc        *domain.FeedService
	identity   Identity
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the HTTP server. The stream handler, when non-nil,
// is mounted at GET /api/stream.
func NewServer(cfg *config.Config, svc *domain.FeedService, identity Identity, stream http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		identity: identity,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/feed", s.handleGetFeed)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)
	mux.HandleFunc("POST /api/posts/{id}/like", s.handleToggleLike)
	mux.HandleFunc("POST /api/posts/{id}/repost", s.handleToggleRepost)
	mux.HandleFunc("GET /api/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("POST /api/profiles/{id}/follow", s.handleToggleFollow)
	mux.HandleFunc("PATCH /api/profiles/me", s.handleUpdateProfile)
	mux.HandleFunc("GET /api/search/posts", s.handleSearchPosts)
	mux.HandleFunc("GET /api/search/users", s.handleSearchUsers)
	mux.HandleFunc("GET /health", s.handleHealth)
	if stream != nil {
		mux.Handle("GET /api/stream", stream)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, c.Handler(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// is shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) actor(r *http.Request) string {
	actorID, ok := s.identity.ActorID(r)
	if !ok {
		return ""
	}
	return actorID
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := s.actor(r)

	var filter domain.FeedFilter
	if author := r.URL.Query().Get("author"); author != "" {
		filter.AuthorID = author
	}
	if f := r.URL.Query().Get("following"); f == "1" || f == "true" {
		if viewerID == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "followees-only feed requires authentication")
			return
		}
		filter.FolloweesOf = viewerID
	}

	limit := domain.DefaultPageLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	var cursor *domain.Cursor
	if c := r.URL.Query().Get("cursor"); c != "" {
		parsed, err := domain.ParseCursor(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		cursor = &parsed
	}

	page, err := s.svc.GetFeed(r.Context(), viewerID, filter, cursor, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"posts": feedItems(page.Posts)}
	if page.NextCursor != nil {
		resp["nextCursor"] = page.NextCursor.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var body struct {
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}

	item, err := s.svc.CreatePost(r.Context(), actorID, body.Content, body.Tags)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	if err := s.svc.DeletePost(r.Context(), actorID, r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	added, err := s.svc.ToggleLike(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) handleToggleRepost(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	added, reposted, err := s.svc.ToggleRepost(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"added": added}
	if reposted != nil {
		resp["repostedPost"] = reposted
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	added, err := s.svc.ToggleFollow(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.GetProfile(r.Context(), s.actor(r), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID := s.actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var upd domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}

	if err := s.svc.UpdateProfile(r.Context(), actorID, upd); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "q parameter is required")
		return
	}

	items, err := s.svc.SearchPosts(r.Context(), s.actor(r), query)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": feedItems(items)})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "q parameter is required")
		return
	}

	users, err := s.svc.SearchUsers(r.Context(), query)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrSelfFollow),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "request failed")
	}
}

// feedItems keeps empty pages as [] rather than null on the wire.
func feedItems(items []domain.FeedItem) []domain.FeedItem {
	if items == nil {
		return []domain.FeedItem{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
