package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/participa-df/ouvidoria-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username does not exist, so the
// response time does not reveal which usernames are valid.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService authenticates staff accounts and issues session tokens.
type AuthService struct {
	db       *pgxpool.Pool
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.SugaredLogger
}

// NewAuthService creates a new auth service. Tokens expire after 8 hours.
func NewAuthService(db *pgxpool.Pool, secret string, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{
		db:       db,
		secret:   []byte(secret),
		tokenTTL: 8 * time.Hour,
		logger:   logger,
	}
}

// Authenticate verifies the credentials and returns a signed JWT plus the
// admin record. Wrong username and wrong password are indistinguishable to
// the caller.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, *models.Admin, error) {
	var admin models.Admin
	row := s.db.QueryRow(ctx,
		"SELECT id, username, password_hash, role, created_at FROM admins WHERE username = $1",
		username)
	err := row.Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.Role, &admin.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("query admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Infow("Failed login attempt", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       admin.ID.String(),
		"username": admin.Username,
		"role":     admin.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Infow("Admin logged in", "username", admin.Username, "role", admin.Role)
	return signed, &admin, nil
}
