package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/pkg/response"
	"github.com/clc-ministry/forms-backend/pkg/utils"
)

// AdminGroup is the default group placed in locally issued tokens.
const AdminGroup = "admins"

// dummyHash keeps the response time of unknown usernames close to that of known ones.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3nCJ0ZgWWm3RrYT9KmdxH3W"

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Handler serves the local development sign-in endpoint.
type Handler struct {
	users  map[string]string // username -> bcrypt hash
	jwt    *JWTService
	group  string
	logger *zap.Logger
}

// NewHandler creates an auth handler for the configured admin users.
func NewHandler(users map[string]string, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, group: AdminGroup, logger: logger}
}

// WithGroup sets the group issued tokens carry, so they pass the same group
// check as pool users.
func (h *Handler) WithGroup(group string) *Handler {
	if group != "" {
		h.group = group
	}
	return h
}

// Login handles POST /auth/login and returns an id/access token pair.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	hash, ok := h.users[req.Username]
	if !ok {
		hash = dummyHash
	}
	if !utils.CheckPassword(req.Password, hash) || !ok {
		h.logger.Warn("local sign-in rejected", zap.String("username", req.Username))
		response.Unauthorized(c, "invalid username or password")
		return
	}

	pair, err := h.jwt.Generate(req.Username, "", []string{h.group})
	if err != nil {
		h.logger.Error("generate tokens failed", zap.Error(err))
		response.Internal(c, "Server error")
		return
	}
	response.OK(c, gin.H{
		"idToken":     pair.IDToken,
		"accessToken": pair.AccessToken,
		"expiresIn":   pair.ExpiresIn,
		"tokenType":   pair.TokenType,
	})
}
