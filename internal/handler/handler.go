package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/middleware"
	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/Dan9191/winprob-gateway/internal/service"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Authenticator registers and logs in users
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
}

// Predictor serves win-probability predictions
type Predictor interface {
	Predict(ctx context.Context, payload json.RawMessage) (*models.PredictionResult, error)
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth      Authenticator
	predictor Predictor
	db        Pinger
	log       *logrus.Logger
}

func NewHandler(auth Authenticator, predictor Predictor, db Pinger, log *logrus.Logger) *Handler {
	return &Handler{auth: auth, predictor: predictor, db: db, log: log}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type meResponse struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signup handles user registration
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.auth.Register(r.Context(), in.Username, in.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
	case errors.Is(err, service.ErrDuplicateUser):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Username and password are required")
	default:
		h.log.WithError(err).Error("Signup error")
		writeError(w, http.StatusInternalServerError, "Signup failed")
	}
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), in.Username, in.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Login successful", Token: token})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid username or password")
	default:
		h.log.WithError(err).Error("Login error")
		writeError(w, http.StatusInternalServerError, "Login failed")
	}
}

// Predict logs the match state and proxies it to the inference backend
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.predictor.Predict(r.Context(), payload)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid request body")
	default:
		h.log.WithError(err).Error("Prediction error")
		writeError(w, http.StatusInternalServerError, "Prediction failed")
	}
}

// Root sends browsers to the login page
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login.html", http.StatusFound)
}

// Me returns the identity carried by the caller's session token
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	resp := meResponse{UserID: claims.UserID, Username: claims.Username}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports whether the database is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
