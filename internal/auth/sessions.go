package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"vidtube/internal/db"
	"vidtube/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid user credentials")
	// ErrTokenReused is returned for a refresh token that verifies but is no
	// longer the one stored for its user.
	ErrTokenReused = errors.New("refresh token is expired or used")
)

// UserStore is the slice of the credential store sessions need.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	SetRefreshToken(ctx context.Context, id, tokenHash string) error
	SwapRefreshToken(ctx context.Context, id, expected, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// Sessions issues, rotates and revokes the single refresh token each user
// holds.
type Sessions struct {
	users  UserStore
	tokens *TokenService
}

func NewSessions(users UserStore, tokens *TokenService) *Sessions {
	return &Sessions{users: users, tokens: tokens}
}

func (s *Sessions) Login(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("finding user: %w", err)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}

	hash := HashRefreshToken(pair.RefreshToken)
	if err := s.users.SetRefreshToken(ctx, user.ID, hash); err != nil {
		return nil, nil, fmt.Errorf("storing refresh token: %w", err)
	}
	user.RefreshTokenHash = &hash

	return user, pair, nil
}

// Rotate exchanges presented for a new pair. The presented token must verify
// against the refresh secret and equal the value stored on its user; the new
// value replaces it with a compare-and-swap so a token rotates at most once.
func (s *Sessions) Rotate(ctx context.Context, presented string) (*models.User, *TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, nil, ErrMissingToken
	}

	claims, err := s.tokens.ValidateRefreshToken(presented)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("finding user: %w", err)
	}

	presentedHash := HashRefreshToken(presented)
	if !user.HasRefreshToken() ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshTokenHash), []byte(presentedHash)) != 1 {
		return nil, nil, ErrTokenReused
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}

	nextHash := HashRefreshToken(pair.RefreshToken)
	if err := s.users.SwapRefreshToken(ctx, user.ID, presentedHash, nextHash); err != nil {
		if errors.Is(err, db.ErrTokenMismatch) {
			return nil, nil, ErrTokenReused
		}
		return nil, nil, fmt.Errorf("rotating refresh token: %w", err)
	}
	user.RefreshTokenHash = &nextHash

	return user, pair, nil
}

func (s *Sessions) Logout(ctx context.Context, userID string) error {
	err := s.users.ClearRefreshToken(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	return nil
}
