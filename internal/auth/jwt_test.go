package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"vidtube/internal/models"
)

const (
	testAccessSecret  = "access-secret-access-secret-access-secret"
	testRefreshSecret = "refresh-secret-refresh-secret-refresh-secret"
)

func newTestTokenService() *TokenService {
	return NewTokenService(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour)
}

func TestIssueProducesDistinctlySignedPair(t *testing.T) {
	svc := newTestTokenService()
	user := &models.User{ID: "usr_1", Username: "alice", Email: "alice@example.com"}

	pair, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens are identical")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("refresh expiry %s not after access expiry %s", pair.RefreshExpiresAt, pair.AccessExpiresAt)
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID() != "usr_1" || claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("access claims = %+v, want user identity", claims)
	}

	refreshClaims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken() error = %v", err)
	}
	if refreshClaims.UserID() != "usr_1" {
		t.Fatalf("refresh subject = %q, want usr_1", refreshClaims.UserID())
	}
}

func TestIssueTwiceYieldsDifferentRefreshTokens(t *testing.T) {
	svc := newTestTokenService()
	user := &models.User{ID: "usr_1"}

	first, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	second, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatal("two issued refresh tokens are identical")
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	svc := newTestTokenService()
	pair, err := svc.Issue(&models.User{ID: "usr_1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateAccessToken(refresh) error = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.ValidateRefreshToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateRefreshToken(access) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpiredAndTampered(t *testing.T) {
	svc := newTestTokenService()
	pair, err := svc.Issue(&models.User{ID: "usr_1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	later := NewTokenService(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour)
	later.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := later.ValidateRefreshToken(pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ValidateRefreshToken(expired) error = %v, want ErrTokenExpired", err)
	}

	other := NewTokenService(testAccessSecret, strings.Repeat("x", 40), 15*time.Minute, 24*time.Hour)
	if _, err := other.ValidateRefreshToken(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateRefreshToken(wrong secret) error = %v, want ErrInvalidToken", err)
	}

	if _, err := svc.ValidateAccessToken(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("ValidateAccessToken(\"\") error = %v, want ErrMissingToken", err)
	}
}

func TestPasswordVerify(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if strings.Contains(hash, "correct horse") {
		t.Fatal("hash contains plaintext")
	}
	if !VerifyPassword("correct horse", hash) {
		t.Fatal("VerifyPassword(correct) = false")
	}
	if VerifyPassword("battery staple", hash) {
		t.Fatal("VerifyPassword(wrong) = true")
	}

	if _, err := HashPassword(strings.Repeat("x", 73), 4); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("HashPassword(73 bytes) error = %v, want ErrInvalidPassword", err)
	}
}
