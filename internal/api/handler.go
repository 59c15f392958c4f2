// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
	"github.com/bhardwajvicky/DevView/internal/syncer"
)

// EntityFlags mirrors the per-entity enable switches from configuration.
type EntityFlags struct {
	Users        bool
	Repositories bool
	Commits      bool
	PullRequests bool
}

// Handler is the container for API dependencies.
type Handler struct {
	db      database.Querier
	users   *syncer.UserSync
	repos   *syncer.RepoSync
	commits *syncer.CommitSync
	prs     *syncer.PullRequestSync
	flags   EntityFlags
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with the sync trigger
// routes.
func NewRouter(db database.Querier, users *syncer.UserSync, repos *syncer.RepoSync,
	commits *syncer.CommitSync, prs *syncer.PullRequestSync, flags EntityFlags, logger *slog.Logger) http.Handler {

	h := &Handler{
		db:      db,
		users:   users,
		repos:   repos,
		commits: commits,
		prs:     prs,
		flags:   flags,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Historical walks can take a while; the timeout guards triggers, not
	// the background orchestrator.
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/health", h.healthCheck)
	r.Route("/v1/sync", func(r chi.Router) {
		r.Post("/users/{workspace}", h.syncUsers)
		r.Post("/repositories/{workspace}", h.syncRepositories)
		r.Post("/commits/{workspace}/{slug}", h.syncCommits)
		r.Post("/pullrequests/{workspace}/{slug}", h.syncPullRequests)
		r.Post("/refresh-line-counts", h.refreshLineCounts)
		r.Post("/fix-pr-merge-flags", h.fixPRMergeFlags)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dateRange is the request body for windowed sync triggers.
type dateRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (h *Handler) syncUsers(w http.ResponseWriter, r *http.Request) {
	if !h.flags.Users {
		respondWithError(w, http.StatusConflict, "User sync is disabled")
		return
	}
	if err := h.users.Sync(r.Context(), chi.URLParam(r, "workspace")); err != nil {
		h.logger.Error("User sync failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "User synchronization failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "users synchronized"})
}

func (h *Handler) syncRepositories(w http.ResponseWriter, r *http.Request) {
	if !h.flags.Repositories {
		respondWithError(w, http.StatusConflict, "Repository sync is disabled")
		return
	}
	if err := h.repos.Sync(r.Context(), chi.URLParam(r, "workspace")); err != nil {
		h.logger.Error("Repository sync failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Repository synchronization failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "repositories synchronized"})
}

func (h *Handler) syncCommits(w http.ResponseWriter, r *http.Request) {
	if !h.flags.Commits {
		respondWithError(w, http.StatusConflict, "Commit sync is disabled")
		return
	}
	window, ok := decodeWindow(w, r)
	if !ok {
		return
	}

	hasMore, err := h.commits.Sync(r.Context(), chi.URLParam(r, "workspace"), chi.URLParam(r, "slug"), window)
	if err != nil {
		h.respondSyncError(w, err, "Commit synchronization failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"status": "commits synchronized", "has_more_history": hasMore})
}

func (h *Handler) syncPullRequests(w http.ResponseWriter, r *http.Request) {
	if !h.flags.PullRequests {
		respondWithError(w, http.StatusConflict, "Pull request sync is disabled")
		return
	}
	window, ok := decodeWindow(w, r)
	if !ok {
		return
	}

	hasMore, err := h.prs.Sync(r.Context(), chi.URLParam(r, "workspace"), chi.URLParam(r, "slug"), window)
	if err != nil {
		h.respondSyncError(w, err, "Pull request synchronization failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"status": "pull requests synchronized", "has_more_history": hasMore})
}

func (h *Handler) refreshLineCounts(w http.ResponseWriter, r *http.Request) {
	if !h.flags.Commits {
		respondWithError(w, http.StatusConflict, "Commit sync is disabled")
		return
	}
	count, err := h.commits.RefreshAllStats(r.Context())
	if err != nil {
		h.logger.Error("Commit refresh failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Commit line count refresh failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"refreshed": count})
}

func (h *Handler) fixPRMergeFlags(w http.ResponseWriter, r *http.Request) {
	// The correction reads the PR-commit join, so it follows the pull
	// request switch.
	if !h.flags.PullRequests {
		respondWithError(w, http.StatusConflict, "Pull request sync is disabled")
		return
	}
	count, err := h.db.FixPRMergeFlags(r.Context())
	if err != nil {
		h.logger.Error("Fixing PR merge flags failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Fixing PR merge flags failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"updated": count})
}

func (h *Handler) respondSyncError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, apperrors.ErrRepositoryNotFound) {
		respondWithError(w, http.StatusNotFound, "Repository not found; sync repositories first")
		return
	}
	h.logger.Error(msg, "error", err)
	respondWithError(w, http.StatusInternalServerError, msg)
}

func decodeWindow(w http.ResponseWriter, r *http.Request) (model.DateWindow, bool) {
	var dr dateRange
	if err := json.NewDecoder(r.Body).Decode(&dr); err != nil {
		respondWithError(w, http.StatusBadRequest, "Body must contain start_date and end_date in RFC3339 format")
		return model.DateWindow{}, false
	}
	if dr.StartDate.IsZero() || dr.EndDate.IsZero() || dr.EndDate.Before(dr.StartDate) {
		respondWithError(w, http.StatusBadRequest, "start_date must be before end_date")
		return model.DateWindow{}, false
	}
	return model.DateWindow{Start: dr.StartDate, End: dr.EndDate}, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
