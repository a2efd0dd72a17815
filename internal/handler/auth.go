package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/auth"
	"github.com/onemployment/api/internal/service"
)

// avatarField is the multipart field carrying the avatar file.
const avatarField = "avatar"

// AuthHandler serves the account endpoints under /api/auth.
type AuthHandler struct {
	accounts       *service.AuthService
	maxAvatarBytes int64
	logger         *slog.Logger
}

func NewAuthHandler(accounts *service.AuthService, maxAvatarBytes int64, logger *slog.Logger) *AuthHandler {
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = service.DefaultMaxAvatarBytes
	}
	return &AuthHandler{accounts: accounts, maxAvatarBytes: maxAvatarBytes, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// callerID returns the authenticated user id. Routes using it sit behind
// auth.RequireAuth, so a miss means the router is misconfigured.
func callerID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("unauthorized")
	}
	return id, nil
}

// HandleRegister: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLogin: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMe: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.CurrentUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// HandleUpdateMe: PATCH /api/auth/me
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req service.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// HandleChangePassword: PATCH /api/auth/password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

// HandleUploadAvatar: POST /api/auth/me/avatar (multipart, field "avatar")
//
// The body is capped at the avatar ceiling plus 1 MiB for the multipart
// envelope; the service enforces the exact file limit.
func (h *AuthHandler) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarBytes+(1<<20))
	file, header, err := r.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, h.logger, apperror.PayloadTooLarge(h.maxAvatarBytes))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			writeError(w, r, h.logger, apperror.ValidationFailed(avatarField, "avatar file is required"))
		default:
			writeError(w, r, h.logger, apperror.ValidationFailed(avatarField, "malformed multipart body"))
		}
		return
	}
	defer file.Close()

	user, err := h.accounts.UploadAvatar(r.Context(), id, service.AvatarUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}
