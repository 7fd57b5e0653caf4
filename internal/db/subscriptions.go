package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidtube/internal/models"
)

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create records subscriberID following channelID. A second edge for the same
// pair is rejected with ErrDuplicate; an unknown user on either end yields
// ErrNotFound.
func (r *SubscriptionRepository) Create(ctx context.Context, subscriberID, channelID string) (*models.Subscription, error) {
	id, err := GenerateID("sub")
	if err != nil {
		return nil, fmt.Errorf("generating subscription ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, subscriberID, channelID, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		if IsForeignKeyConstraintError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	return &models.Subscription{
		ID:           id,
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, subscriberID, channelID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		subscriberID, channelID,
	)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return checkRowsAffected(result)
}

// ListSubscribers returns the users following channelID, newest first.
func (r *SubscriptionRepository) ListSubscribers(ctx context.Context, channelID string) ([]*models.SubscriptionEntry, error) {
	return r.listEntries(ctx,
		`SELECT s.id, s.created_at, `+prefixedUserColumns+`
           FROM subscriptions s
           JOIN users u ON u.id = s.subscriber_id
          WHERE s.channel_id = ?
          ORDER BY s.created_at DESC`,
		channelID,
	)
}

// ListSubscribedChannels returns the channels subscriberID follows, newest first.
func (r *SubscriptionRepository) ListSubscribedChannels(ctx context.Context, subscriberID string) ([]*models.SubscriptionEntry, error) {
	return r.listEntries(ctx,
		`SELECT s.id, s.created_at, `+prefixedUserColumns+`
           FROM subscriptions s
           JOIN users u ON u.id = s.channel_id
          WHERE s.subscriber_id = ?
          ORDER BY s.created_at DESC`,
		subscriberID,
	)
}

// ChannelProfile aggregates the public profile of username along with its
// subscription counts and whether viewerID follows it.
func (r *SubscriptionRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	var p models.ChannelProfile

	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.full_name, u.email, u.avatar, u.cover_image, u.created_at,
                (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
                (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
                EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = ?)
           FROM users u
          WHERE u.username = ?`,
		viewerID, username,
	).Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.Email,
		&p.Avatar,
		&p.CoverImage,
		&p.CreatedAt,
		&p.SubscribersCount,
		&p.ChannelsSubscribedToCount,
		&p.IsSubscribed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying channel profile: %w", err)
	}

	return &p, nil
}

const prefixedUserColumns = `u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image, u.password_hash, u.refresh_token_hash, u.created_at, u.updated_at`

func (r *SubscriptionRepository) listEntries(ctx context.Context, query string, args ...any) ([]*models.SubscriptionEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	entries := []*models.SubscriptionEntry{}
	for rows.Next() {
		var e models.SubscriptionEntry
		var refreshTokenHash sql.NullString
		u := &models.User{}

		if err := rows.Scan(
			&e.SubscriptionID,
			&e.SubscribedAt,
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
		); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}

		u.RefreshTokenHash = nullStringToPtr(refreshTokenHash)
		e.User = u
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
