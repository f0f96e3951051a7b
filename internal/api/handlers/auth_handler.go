package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetcab/cab-dispatch/internal/api/dto"
	"github.com/fleetcab/cab-dispatch/internal/api/middleware"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/pkg/cache"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// Register handles POST /v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Validation("Email and password are required", err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondError(c, errors.Internal("Failed to hash password", err))
		return
	}

	role := rider.RoleEmployee
	if req.Role != "" {
		role = rider.Role(req.Role)
	}

	now := time.Now()
	r := &rider.Rider{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Riders.Create(c.Request.Context(), r); err != nil {
		if err == rider.ErrEmailTaken {
			h.respondError(c, errors.Conflict("User already exists", err))
			return
		}
		h.respondError(c, errors.Unavailable("Failed to register user", err))
		return
	}

	h.Logger.Info("Rider registered",
		logger.String("rider_id", r.ID.String()),
		logger.String("role", string(r.Role)),
	)

	c.JSON(http.StatusCreated, gin.H{"id": r.ID, "email": r.Email, "role": r.Role})
}

// Login handles POST /v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Validation("Email and password are required", err))
		return
	}

	r, err := h.Riders.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, errors.Unauthorized("Invalid credentials", nil))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(req.Password)) != nil {
		h.respondError(c, errors.Unauthorized("Invalid credentials", nil))
		return
	}

	token, err := middleware.GenerateToken(r.ID, r.Role, h.Config.JWT.Secret, h.Config.JWT.Expiry)
	if err != nil {
		h.respondError(c, errors.Internal("Failed to issue token", err))
		return
	}

	if err := cache.SetSessionToken(c.Request.Context(), h.Redis, r.ID.String(), token, h.Config.JWT.Expiry); err != nil {
		h.Logger.Warn("Failed to record session token", logger.Err(err))
	}

	c.JSON(http.StatusOK, dto.AuthResponse{Token: token})
}

// Logout handles POST /v1/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	subjectID := middleware.SubjectID(c)
	if err := cache.DeleteSessionToken(c.Request.Context(), h.Redis, subjectID.String()); err != nil {
		h.Logger.Warn("Failed to drop session token", logger.Err(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
