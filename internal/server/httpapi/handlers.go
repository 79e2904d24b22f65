package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/dmitrijs2005/cerberus/internal/server/services"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

type registerRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string             `json:"token"`
	User      models.AccountView `json:"user"`
	ExpiresAt time.Time          `json:"expires_at"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := s.health.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, envelope{
			Success: false,
			Data:    healthResponse{Status: "unhealthy", Database: "disconnected"},
			Error:   "Database unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, success(healthResponse{Status: "healthy", Database: "connected"}))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(describe(err)))
		return
	}

	acc, err := s.accounts.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{Success: true, Data: acc.View(), Message: "User registered successfully"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(describe(err)))
		return
	}

	res, err := s.accounts.Login(c.Request.Context(), services.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    loginResponse{Token: res.Token, User: res.Account.View(), ExpiresAt: res.ExpiresAt},
		Message: "Login successful",
	})
}

// handleLogout always reports success; a store failure is only logged.
func (s *Server) handleLogout(c *gin.Context) {
	if err := s.accounts.Logout(c.Request.Context(), c.GetHeader(common.AuthorizationHeaderName)); err != nil {
		s.logger.Error(c.Request.Context(), "logout failed", "error", err)
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Logged out successfully"})
}

func (s *Server) handleRefresh(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, failure("Token refresh not implemented yet"))
}

func (s *Server) handleMe(c *gin.Context) {
	claims, ok := gate.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(msgAuthRequired))
		return
	}

	acc, err := s.accounts.CurrentAccount(c.Request.Context(), claims)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, success(acc.View()))
}

func (s *Server) handleDeactivate(c *gin.Context) {
	claims, ok := gate.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(msgAuthRequired))
		return
	}

	if err := s.accounts.Deactivate(c.Request.Context(), claims); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Account deactivated"})
}
