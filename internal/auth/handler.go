package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/respond"
	"github.com/ayush/ivr-designer/internal/store"
)

// UserStore defines the user persistence the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, name, email, hashedPassword string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions Sessions
	logger   *zap.Logger
}

func NewHandler(users UserStore, sessions Sessions, logger *zap.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, logger: logger}
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := h.users.ByEmail(r.Context(), email)
	switch {
	case err == nil:
		respond.Error(w, r, h.logger, apperr.Validation("Email already in use"))
		return
	case !errors.Is(err, store.ErrNotFound):
		respond.Error(w, r, h.logger, apperr.Storage("Failed to create user", err))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	user, err := h.users.Create(r.Context(), strings.TrimSpace(req.Name), email, string(hashed))
	if errors.Is(err, store.ErrDuplicate) {
		respond.Error(w, r, h.logger, apperr.Validation("Email already in use"))
		return
	}
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Storage("Failed to create user", err))
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))
	respond.JSON(w, http.StatusOK, user.Profile())
}

// Login authenticates a user and creates a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	invalid := &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "Invalid credentials"}
	user, err := h.users.ByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(w, r, h.logger, invalid)
		return
	}
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Storage("Failed to log in", err))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respond.Error(w, r, h.logger, invalid)
		return
	}

	sid, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Storage("Session creation failed", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessions.TTL() / time.Second),
	})
	respond.JSON(w, http.StatusOK, user.Profile())
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("session delete failed", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	respond.Message(w, http.StatusOK, "logged out")
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, apperr.Unauthenticated())
		return
	}

	user, err := h.users.ByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(w, r, h.logger, apperr.UserNotFound())
		return
	}
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Storage("Failed to load user", err))
		return
	}
	respond.JSON(w, http.StatusOK, user.Profile())
}
