package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"campusnet/internal/db"
	"campusnet/internal/models"
)

type UserHandler struct {
	users *db.UserRepository
}

func NewUserHandler(users *db.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, err := h.users.PublicByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error loading user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=64"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=64"`
	Bio       *string `json:"bio" validate:"omitempty,max=500"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url,max=512"`
}

var profileTextPolicy = bluemonday.StrictPolicy()

// PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req UpdateProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	profile, err := h.users.FindProfile(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error loading user profile", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	applyProfileUpdate(profile, &req)

	if err := h.users.UpdateProfile(r.Context(), userID, profile); err != nil {
		slog.Error("error updating user profile", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	user, err := h.users.PublicByID(r.Context(), userID)
	if err != nil {
		slog.Error("error loading user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func applyProfileUpdate(profile *models.UserProfile, req *UpdateProfileRequest) {
	if req.FirstName != nil {
		profile.FirstName = sanitizeProfileText(*req.FirstName)
	}
	if req.LastName != nil {
		profile.LastName = sanitizeProfileText(*req.LastName)
	}
	if req.Bio != nil {
		bio := sanitizeProfileText(*req.Bio)
		profile.Bio = &bio
	}
	if req.AvatarURL != nil {
		avatarURL := strings.TrimSpace(*req.AvatarURL)
		profile.AvatarURL = &avatarURL
	}
}

func sanitizeProfileText(s string) string {
	return strings.TrimSpace(profileTextPolicy.Sanitize(s))
}
