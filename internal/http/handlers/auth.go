package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// tokenTTL is how long an issued admin token stays valid.
const tokenTTL = 7 * 24 * time.Hour

// AuthHandler issues admin JWTs for the dashboard. There is a single admin
// identity configured through the environment; the stored credential is a
// bcrypt hash, never a plaintext password.
type AuthHandler struct {
	secret       []byte
	username     string
	passwordHash string
	logger       *logging.Logger
	now          func() time.Time
}

// NewAuthHandler creates the login handler.
func NewAuthHandler(secret, username, passwordHash string, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{
		secret:       []byte(secret),
		username:     username,
		passwordHash: passwordHash,
		logger:       logger.Component("auth"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if len(h.secret) == 0 || h.passwordHash == "" {
		h.logger.Error("login attempted with admin auth unconfigured")
		http.Error(w, "authentication not configured", http.StatusServiceUnavailable)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		h.logger.Warn("login rejected", "username", req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	expires := h.now().Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub": req.Username,
		"iat": h.now().Unix(),
		"exp": expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		h.logger.Error("failed to sign token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("admin logged in", "username", req.Username)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{Token: token, ExpiresAt: expires})
}
