package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"campusnet/internal/auth"
	"campusnet/internal/db"
	"campusnet/internal/models"
)

const refreshCookieName = "refreshToken"

// EmailSender delivers account emails. Delivery is best-effort: the auth
// flows never fail a committed state transition because SMTP was down.
type EmailSender interface {
	SendVerificationEmail(to, firstName, token string) error
	SendPasswordResetEmail(to, firstName, token string, ttl time.Duration) error
}

type AuthHandler struct {
	database       *db.DB
	users          *db.UserRepository
	universities   *db.UniversityRepository
	communities    *db.CommunityRepository
	refreshTokens  *db.RefreshTokenRepository
	tokens         *auth.TokenService
	hasher         *auth.PasswordHasher
	email          EmailSender
	resetTokenTTL  time.Duration
	rotationWindow time.Duration
}

func NewAuthHandler(
	database *db.DB,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	email EmailSender,
	resetTokenTTL time.Duration,
	rotationWindow time.Duration,
) *AuthHandler {
	return &AuthHandler{
		database:       database,
		users:          db.NewUserRepository(database),
		universities:   db.NewUniversityRepository(database),
		communities:    db.NewCommunityRepository(database),
		refreshTokens:  db.NewRefreshTokenRepository(database),
		tokens:         tokens,
		hasher:         hasher,
		email:          email,
		resetTokenTTL:  resetTokenTTL,
		rotationWindow: rotationWindow,
	}
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,min=3,max=32"`
	FirstName       string `json:"firstName" validate:"required,max=64"`
	LastName        string `json:"lastName" validate:"required,max=64"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.Password != req.ConfirmPassword {
		badRequest(w, "Passwords do not match")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		badRequest(w, "invalid email format")
		return
	}
	domain := email[at+1:]

	passwordHash, err := h.hasher.Hash(r.Context(), req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	verificationToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		slog.Error("error generating verification token", "error", err)
		internalError(w)
		return
	}

	userID, err := db.GenerateID("usr")
	if err != nil {
		slog.Error("error generating user id", "error", err)
		internalError(w)
		return
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("error starting registration transaction", "error", err)
		internalError(w)
		return
	}
	defer tx.Rollback()

	university, err := h.universities.WithTx(tx).FindByEmailDomain(r.Context(), domain)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "University not found")
		return
	}
	if err != nil {
		slog.Error("error resolving university domain", "error", err)
		internalError(w)
		return
	}

	users := h.users.WithTx(tx)
	if _, err := users.FindByEmail(r.Context(), email); err == nil {
		conflict(w, "A user with the provided email address already exists")
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		slog.Error("error checking existing user", "error", err)
		internalError(w)
		return
	}

	user := &models.User{
		ID:                userID,
		Email:             email,
		Username:          strings.TrimSpace(req.Username),
		PasswordHash:      passwordHash,
		Role:              models.RoleUser,
		VerificationToken: &verificationToken,
		UniversityID:      university.ID,
	}
	profile := &models.UserProfile{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}

	if err := users.Create(r.Context(), user, profile); err != nil {
		// The unique constraint is the real guard: two concurrent
		// registrations both pass the read above, only one insert wins.
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "A user with the provided email address already exists")
			return
		}
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error committing registration", "error", err)
		internalError(w)
		return
	}

	if err := h.email.SendVerificationEmail(email, profile.FirstName, verificationToken); err != nil {
		slog.Error("error sending verification email", "error", err, "user_id", userID)
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please check your email for verification.",
		UserID:  userID,
	})
}

type MessageResponse struct {
	Message string `json:"message"`
}

// GET /api/v1/auth/verify-email?token=...
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		badRequest(w, "Verification token is required")
		return
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("error starting verification transaction", "error", err)
		internalError(w)
		return
	}
	defer tx.Rollback()

	users := h.users.WithTx(tx)
	user, err := users.FindByVerificationToken(r.Context(), token)
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid or expired verification token")
		return
	}
	if err != nil {
		slog.Error("error finding user by verification token", "error", err)
		internalError(w)
		return
	}

	rowsAffected, err := users.MarkVerified(r.Context(), token)
	if err != nil {
		slog.Error("error marking user verified", "error", err)
		internalError(w)
		return
	}
	if rowsAffected == 0 {
		badRequest(w, "Invalid or expired verification token")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error committing verification", "error", err)
		internalError(w)
		return
	}

	// Best-effort: a failed enrollment must not undo the verification.
	if err := h.enrollDefaultCommunity(r, user); err != nil {
		slog.Error("error enrolling user into default community", "error", err, "user_id", user.ID)
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Email verified successfully"})
}

func (h *AuthHandler) enrollDefaultCommunity(r *http.Request, user *models.User) error {
	university, err := h.universities.FindByID(r.Context(), user.UniversityID)
	if err != nil {
		return err
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := h.communities.WithTx(tx).EnsureDefaultMembership(r.Context(), university.ID, university.Name, user.ID); err != nil {
		return err
	}

	return tx.Commit()
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// POST /api/v1/auth/resend-verification-email
//
// Responds identically whether or not the account exists, and whether or
// not it is already verified, to prevent enumeration.
func (h *AuthHandler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	genericResponse := MessageResponse{Message: "If the email exists, a verification email has been sent."}

	user, err := h.users.FindByEmail(r.Context(), email)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, genericResponse)
		return
	}
	if err != nil {
		slog.Error("error finding user for verification resend", "error", err)
		internalError(w)
		return
	}

	if user.IsVerified {
		writeJSON(w, http.StatusOK, genericResponse)
		return
	}

	verificationToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		slog.Error("error generating verification token", "error", err)
		internalError(w)
		return
	}

	if err := h.users.SetVerificationToken(r.Context(), user.ID, verificationToken); err != nil {
		slog.Error("error storing verification token", "error", err)
		internalError(w)
		return
	}

	firstName := h.firstNameOf(r, user.ID)
	if err := h.email.SendVerificationEmail(email, firstName, verificationToken); err != nil {
		slog.Error("error sending verification email", "error", err, "user_id", user.ID)
	}

	writeJSON(w, http.StatusOK, genericResponse)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message     string             `json:"message"`
	AccessToken string             `json:"accessToken"`
	User        *models.PublicUser `json:"user"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.FindByEmail(r.Context(), email)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user for login", "error", err)
		internalError(w)
		return
	}

	if err := h.hasher.Compare(r.Context(), user.PasswordHash, req.Password); err != nil {
		unauthorized(w, "Invalid credentials")
		return
	}

	if !user.IsVerified {
		forbidden(w, "Please verify your email before logging in")
		return
	}

	accessToken, err := h.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		slog.Error("error generating access token", "error", err)
		internalError(w)
		return
	}

	refreshToken, refreshExpiresAt, err := h.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		slog.Error("error generating refresh token", "error", err)
		internalError(w)
		return
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("error starting login transaction", "error", err)
		internalError(w)
		return
	}
	defer tx.Rollback()

	users := h.users.WithTx(tx)
	if _, err := h.refreshTokens.WithTx(tx).Create(
		r.Context(), user.ID, auth.HashToken(refreshToken), clientIP(r), r.UserAgent(), refreshExpiresAt,
	); err != nil {
		slog.Error("error storing refresh token", "error", err)
		internalError(w)
		return
	}

	if err := users.RecordLogin(r.Context(), user.ID); err != nil {
		slog.Error("error recording login", "error", err)
		internalError(w)
		return
	}

	publicUser, err := users.PublicByID(r.Context(), user.ID)
	if err != nil {
		slog.Error("error loading user data", "error", err)
		internalError(w)
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error committing login", "error", err)
		internalError(w)
		return
	}

	setRefreshCookie(w, refreshToken, refreshExpiresAt)
	writeJSON(w, http.StatusOK, LoginResponse{
		Message:     "Login successful",
		AccessToken: accessToken,
		User:        publicUser,
	})
}

type RefreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// POST /api/v1/auth/refresh-token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		badRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.tokens.ValidateRefreshToken(cookie.Value)
	if err != nil {
		badRequest(w, "Invalid refresh token")
		return
	}

	tokenHash := auth.HashToken(cookie.Value)
	stored, err := h.refreshTokens.FindActiveByHash(r.Context(), tokenHash, claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Refresh token not found or expired")
		return
	}
	if err != nil {
		slog.Error("error finding refresh token", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.FindActiveByID(r.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user for refresh", "error", err)
		internalError(w)
		return
	}

	accessToken, err := h.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		slog.Error("error generating access token", "error", err)
		internalError(w)
		return
	}

	// Rotate only inside the sliding window; the common case is a cheap
	// last-used stamp with the cookie left untouched.
	if time.Until(stored.ExpiresAt) < h.rotationWindow {
		if err := h.rotateRefreshToken(w, r, stored, user.ID); err != nil {
			if errors.Is(err, errTokenAlreadyUsed) {
				unauthorized(w, "Refresh token has already been used")
				return
			}
			slog.Error("error rotating refresh token", "error", err)
			internalError(w)
			return
		}
	} else {
		if err := h.refreshTokens.TouchLastUsed(r.Context(), stored.ID); err != nil {
			slog.Error("error updating refresh token last used", "error", err)
			internalError(w)
			return
		}
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Message:     "Token refreshed successfully",
		AccessToken: accessToken,
	})
}

var errTokenAlreadyUsed = errors.New("refresh token already used")

func (h *AuthHandler) rotateRefreshToken(w http.ResponseWriter, r *http.Request, stored *models.RefreshToken, userID string) error {
	newToken, newExpiresAt, err := h.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return err
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	refreshTokens := h.refreshTokens.WithTx(tx)
	rowsAffected, err := refreshTokens.RevokeForRotation(r.Context(), stored.ID)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return errTokenAlreadyUsed
	}

	if _, err := refreshTokens.Create(
		r.Context(), userID, auth.HashToken(newToken), clientIP(r), r.UserAgent(), newExpiresAt,
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	setRefreshCookie(w, newToken, newExpiresAt)
	return nil
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		unauthorized(w, "Refresh token is required")
		return
	}

	if err := h.refreshTokens.RevokeByHash(r.Context(), auth.HashToken(cookie.Value)); err != nil {
		slog.Error("error revoking refresh token", "error", err)
		internalError(w)
		return
	}

	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// POST /api/v1/auth/forgot-password
//
// Same status and message whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	genericResponse := MessageResponse{Message: "If the email exists, password reset instructions have been sent."}

	user, err := h.users.FindByEmail(r.Context(), email)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, genericResponse)
		return
	}
	if err != nil {
		slog.Error("error finding user for password reset", "error", err)
		internalError(w)
		return
	}

	resetToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		slog.Error("error generating reset token", "error", err)
		internalError(w)
		return
	}

	expiresAt := time.Now().Add(h.resetTokenTTL)
	if err := h.users.SetResetToken(r.Context(), user.ID, resetToken, expiresAt); err != nil {
		slog.Error("error storing reset token", "error", err)
		internalError(w)
		return
	}

	firstName := h.firstNameOf(r, user.ID)
	if err := h.email.SendPasswordResetEmail(email, firstName, resetToken, h.resetTokenTTL); err != nil {
		slog.Error("error sending password reset email", "error", err, "user_id", user.ID)
	}

	writeJSON(w, http.StatusOK, genericResponse)
}

type ResetPasswordRequest struct {
	Token              string `json:"token" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max=128"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required"`
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.NewPassword != req.ConfirmNewPassword {
		badRequest(w, "Passwords do not match")
		return
	}

	user, err := h.users.FindByValidResetToken(r.Context(), req.Token, time.Now())
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid or expired reset token")
		return
	}
	if err != nil {
		slog.Error("error finding user by reset token", "error", err)
		internalError(w)
		return
	}

	passwordHash, err := h.hasher.Hash(r.Context(), req.NewPassword)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	tx, err := h.database.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("error starting password reset transaction", "error", err)
		internalError(w)
		return
	}
	defer tx.Rollback()

	if err := h.users.WithTx(tx).UpdatePassword(r.Context(), user.ID, passwordHash); err != nil {
		slog.Error("error updating password", "error", err)
		internalError(w)
		return
	}

	// Credential change is a trust boundary: every device re-authenticates.
	if err := h.refreshTokens.WithTx(tx).RevokeAllForUser(r.Context(), user.ID); err != nil {
		slog.Error("error revoking refresh tokens", "error", err)
		internalError(w)
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error committing password reset", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successful"})
}

func (h *AuthHandler) firstNameOf(r *http.Request, userID string) string {
	profile, err := h.users.FindProfile(r.Context(), userID)
	if err != nil {
		return "there"
	}
	return profile.FirstName
}

func setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
