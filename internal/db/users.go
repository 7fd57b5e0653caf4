package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidtube/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	// ErrTokenMismatch means the stored refresh token no longer matches the
	// expected value, either because it was rotated, cleared or never set.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

const userColumns = `id, username, email, full_name, avatar, cover_image, password_hash, refresh_token_hash, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type CreateUserParams struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Avatar       string
	CoverImage   string
}

// Create inserts a user. The unique indexes on username and email are the
// authoritative duplicate guard: a violation surfaces as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	id, err := GenerateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Username, p.Email, p.FullName, p.Avatar, p.CoverImage, p.PasswordHash, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:           id,
		Username:     p.Username,
		Email:        p.Email,
		FullName:     p.FullName,
		Avatar:       p.Avatar,
		CoverImage:   p.CoverImage,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByUsernameOrEmail matches either identifier. Empty identifiers never
// match because both columns are required at registration.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users
          WHERE (? <> '' AND username = ?) OR (? <> '' AND email = ?)
          LIMIT 1`,
		username, username, email, email,
	)
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`,
		username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		fullName, email, time.Now().UTC(), id,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating account: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateColumn(ctx, "password_hash", id, passwordHash)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	return r.updateColumn(ctx, "avatar", id, avatarURL)
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, coverImageURL string) error {
	return r.updateColumn(ctx, "cover_image", id, coverImageURL)
}

// SetRefreshToken overwrites the stored refresh token hash unconditionally.
// Login uses it: a fresh login supersedes whatever session existed.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	return r.updateColumn(ctx, "refresh_token_hash", id, tokenHash)
}

// SwapRefreshToken replaces the stored refresh token hash only if it still
// equals expected. Of several concurrent swaps presenting the same expected
// value, exactly one succeeds; the rest get ErrTokenMismatch.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
            SET refresh_token_hash = ?, updated_at = ?
          WHERE id = ?
            AND refresh_token_hash = ?`,
		next, time.Now().UTC(), id, expected,
	)
	if err != nil {
		return fmt.Errorf("swapping refresh token: %w", err)
	}

	if err := checkRowsAffected(result); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenMismatch
		}
		return err
	}
	return nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) updateColumn(ctx context.Context, column, id string, value any) error {
	// column is always one of the literals above, never user input.
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", column, err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var refreshTokenHash sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Avatar,
		&u.CoverImage,
		&u.PasswordHash,
		&refreshTokenHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.RefreshTokenHash = nullStringToPtr(refreshTokenHash)
	return &u, nil
}
