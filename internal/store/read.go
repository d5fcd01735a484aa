package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetProfile returns the profile for userID, or ErrProfileNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		p     Profile
		saved string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, xp_points, coins, streak_days, posts_read, saved_posts, current_rank
		FROM profiles
		WHERE id = ?
	`, userID).Scan(
		&p.ID,
		&p.Username,
		&p.XPPoints,
		&p.Coins,
		&p.StreakDays,
		&p.PostsRead,
		&saved,
		&p.CurrentRank,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("get profile %q: %w", userID, ErrProfileNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %q: %w", userID, err)
	}

	p.SavedPosts = []string{}
	if saved != "" {
		if err := json.Unmarshal([]byte(saved), &p.SavedPosts); err != nil {
			return Profile{}, fmt.Errorf("get profile %q: decode saved_posts: %w", userID, err)
		}
	}
	return p, nil
}

// CoinPool returns the pool record, or ErrPoolNotInitialized.
func (s *Store) CoinPool(ctx context.Context) (CoinPool, error) {
	var pool CoinPool
	err := s.db.QueryRowContext(ctx, `
		SELECT remaining, total_supply FROM coin_pool WHERE id = 1
	`).Scan(&pool.Remaining, &pool.TotalSupply)
	if errors.Is(err, sql.ErrNoRows) {
		return CoinPool{}, fmt.Errorf("read coin pool: %w", ErrPoolNotInitialized)
	}
	if err != nil {
		return CoinPool{}, fmt.Errorf("read coin pool: %w", err)
	}
	return pool, nil
}

// Leaderboard returns the top profiles by XP.
// Ordering: xp_points DESC, id COLLATE BINARY ASC so ties are stable.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, xp_points
		FROM profiles
		ORDER BY xp_points DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		e := LeaderboardEntry{Position: len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.XPPoints); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

// CoinGrant is one recorded Coin grant.
type CoinGrant struct {
	IdempotencyKey string `json:"idempotency_key"`
	SourceType     string `json:"source_type"`
	ContentID      string `json:"content_id,omitempty"`
	Credited       int    `json:"credited"`
	CreatedAt      int64  `json:"created_at"`
}

// CoinGrants returns the user's Coin grants, newest first.
func (s *Store) CoinGrants(ctx context.Context, userID string, limit int) ([]CoinGrant, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT idempotency_key, source_type, content_id, credited, created_at
		FROM coin_grants
		WHERE user_id = ?
		ORDER BY created_at DESC, idempotency_key COLLATE BINARY ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query coin grants: %w", err)
	}
	defer rows.Close()

	grants := []CoinGrant{}
	for rows.Next() {
		var (
			g         CoinGrant
			contentID sql.NullString
		)
		if err := rows.Scan(&g.IdempotencyKey, &g.SourceType, &contentID, &g.Credited, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan coin grant: %w", err)
		}
		g.ContentID = contentID.String
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin grants: %w", err)
	}
	return grants, nil
}
