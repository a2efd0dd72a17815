package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/auth"
	"github.com/onemployment/api/internal/repository"
	"github.com/onemployment/api/internal/service"
)

const maxPageSize = 100

// RepoHandler serves /api/repos and the nested commit and comment routes.
type RepoHandler struct {
	repos  *service.RepoService
	logger *slog.Logger
}

func NewRepoHandler(repos *service.RepoService, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{repos: repos, logger: logger}
}

type editCommitRequest struct {
	Description string `json:"description"`
}

// commentRequest only reads text; any author in the body is dropped.
type commentRequest struct {
	Text string `json:"text"`
}

// requester is the optional caller id on optional-auth routes.
func requester(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HandleCreate: POST /api/repos
func (h *RepoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req service.RepoInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	repo, err := h.repos.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

// HandleListOwn: GET /api/repos
func (h *RepoHandler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	repos, err := h.repos.ListOwn(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandleListPublic: GET /api/repos/all?user=<username>&limit=&offset=
func (h *RepoHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	repos, err := h.repos.ListPublic(r.Context(), r.URL.Query().Get("user"), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandleProfile: GET /api/repos/user/{username}
func (h *RepoHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.repos.PublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// HandleGet: GET /api/repos/{id}
func (h *RepoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Get(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// HandlePatch: PATCH /api/repos/{id}
func (h *RepoHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req service.RepoPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	repo, err := h.repos.Patch(r.Context(), chi.URLParam(r, "id"), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// HandleAddCommit: POST /api/repos/{id}/commits
func (h *RepoHandler) HandleAddCommit(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req service.CommitInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	commit, err := h.repos.AddCommit(r.Context(), chi.URLParam(r, "id"), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, commit)
}

// HandleGetCommit: GET /api/repos/{id}/commits/{commitId}
func (h *RepoHandler) HandleGetCommit(w http.ResponseWriter, r *http.Request) {
	commit, err := h.repos.GetCommit(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "commitId"), requester(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

// HandleEditCommit: PATCH /api/repos/{id}/commits/{commitId}
func (h *RepoHandler) HandleEditCommit(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req editCommitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	commit, err := h.repos.EditCommitDescription(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commitId"), id, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

// HandleAddComment: POST /api/repos/{id}/commits/{commitId}/comments
func (h *RepoHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	comment, err := h.repos.AddComment(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commitId"), id, req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// listOptions reads limit and offset. Missing values mean "everything";
// limit is capped at maxPageSize.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("limit", "limit must be a non-negative integer")
		}
		opts.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
