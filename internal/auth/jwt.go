package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig is the subset of pkg/config.Security the token manager needs,
// kept as its own small struct so this package stays independent of the
// top-level config package.
type JWTConfig struct {
	SecretKey        string
	RefreshSecretKey string
	Algorithm        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
}

// TokenManager issues and validates operator bearer tokens.
type TokenManager struct {
	config     JWTConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// TokenClaims are the claims carried by an operator access or refresh token.
type TokenClaims struct {
	OperatorID uuid.UUID `json:"operator_id"`
	Username   string    `json:"username"`
	TokenType  string    `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is an access+refresh token issued together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// NewTokenManager constructs a TokenManager, generating an RSA key pair if
// the configured algorithm is RS256.
func NewTokenManager(cfg JWTConfig) (*TokenManager, error) {
	tm := &TokenManager{config: cfg}

	if cfg.Algorithm == "RS256" {
		privateKey, err := generateRSAKeyPair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
		}
		tm.privateKey = privateKey
		tm.publicKey = &privateKey.PublicKey
	}

	return tm, nil
}

// GenerateTokenPair issues an access and refresh token for an operator.
func (tm *TokenManager) GenerateTokenPair(op *Operator) (*TokenPair, error) {
	now := time.Now()

	accessClaims := &TokenClaims{
		OperatorID: op.ID,
		Username:   op.Username,
		TokenType:  TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.config.AccessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nanoguard",
			Subject:   op.ID.String(),
			Audience:  jwt.ClaimStrings{"nanoguard-admin-api"},
		},
	}

	accessToken, err := tm.signToken(accessClaims, tm.config.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := &TokenClaims{
		OperatorID: op.ID,
		TokenType:  TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.config.RefreshTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nanoguard",
			Subject:   op.ID.String(),
			Audience:  jwt.ClaimStrings{"nanoguard-admin-refresh"},
		},
	}

	refreshToken, err := tm.signToken(refreshClaims, tm.config.RefreshSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(tm.config.AccessTokenTTL.Seconds()),
	}, nil
}

// ValidateAccessToken parses and validates an access token.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	return tm.validateToken(tokenString, tm.config.SecretKey, TokenTypeAccess)
}

// ValidateRefreshToken parses and validates a refresh token.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*TokenClaims, error) {
	return tm.validateToken(tokenString, tm.config.RefreshSecretKey, TokenTypeRefresh)
}

func (tm *TokenManager) signToken(claims *TokenClaims, secret string) (string, error) {
	switch tm.config.Algorithm {
	case "RS256":
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		return token.SignedString(tm.privateKey)
	case "HS256":
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return token.SignedString([]byte(secret))
	default:
		return "", fmt.Errorf("unsupported signing algorithm: %s", tm.config.Algorithm)
	}
}

func (tm *TokenManager) validateToken(tokenString, secret, expectedType string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch tm.config.Algorithm {
		case "RS256":
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return tm.publicKey, nil
		case "HS256":
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		default:
			return nil, fmt.Errorf("unsupported signing algorithm: %s", tm.config.Algorithm)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s", expectedType, claims.TokenType)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token has expired")
	}

	return claims, nil
}

// GetPublicKeyPEM returns the PEM-encoded RSA public key for verifiers
// outside this process.
func (tm *TokenManager) GetPublicKeyPEM() (string, error) {
	if tm.publicKey == nil {
		return "", fmt.Errorf("public key not available")
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(tm.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})), nil
}

func generateRSAKeyPair() (*rsa.PrivateKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("invalid RSA key: %w", err)
	}
	return privateKey, nil
}
