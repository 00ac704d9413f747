package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Service authenticates operators and gates the admin endpoints that
// override nanobot decisions.
type Service struct {
	tokens    *TokenManager
	passwords *PasswordManager
	operators *Registry
}

// New constructs the operator authentication service. bootstrapUser/Pass
// seed a single default operator account when non-empty, so the admin
// surface is usable out of the box in development.
func New(tokens *TokenManager, passwords *PasswordManager, bootstrapUser, bootstrapPass string) (*Service, error) {
	registry := NewRegistry()
	if bootstrapUser != "" && bootstrapPass != "" {
		hash, err := passwords.HashPassword(bootstrapPass)
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap operator account: %w", err)
		}
		registry.Create(bootstrapUser, hash)
	}
	return &Service{tokens: tokens, passwords: passwords, operators: registry}, nil
}

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token pair.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RegisterRoutes wires the admin auth endpoints onto a router group.
func (s *Service) RegisterRoutes(router gin.IRouter) {
	router.POST("/login", s.login)
	router.POST("/refresh", s.refresh)
}

func (s *Service) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	op, ok := s.operators.Find(req.Username)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := s.passwords.VerifyPassword(op.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if s.passwords.NeedsRehash(op.PasswordHash) {
		if rehashed, err := s.passwords.HashPassword(req.Password); err == nil {
			s.operators.UpdatePasswordHash(op.Username, rehashed)
		}
	}

	pair, err := s.tokens.GenerateTokenPair(op)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    "Bearer",
	})
}

func (s *Service) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	op := &Operator{ID: claims.OperatorID, Username: claims.Username}
	pair, err := s.tokens.GenerateTokenPair(op)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    "Bearer",
	})
}

// RequireOperator is gin middleware that rejects requests without a valid
// operator bearer token, for the admin override endpoints.
func RequireOperator(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("operator_id", claims.OperatorID.String())
		c.Set("operator_username", claims.Username)
		c.Next()
	}
}
