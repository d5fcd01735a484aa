package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// EnsurePool creates the singleton pool record with totalSupply Coins if it
// does not exist yet. An existing pool is left untouched.
func (s *Store) EnsurePool(ctx context.Context, totalSupply int64) error {
	if totalSupply < 0 {
		return fmt.Errorf("ensure pool: negative supply %d", totalSupply)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coin_pool (id, total_supply, remaining)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, totalSupply, totalSupply)
	if err != nil {
		return fmt.Errorf("ensure pool: %w", err)
	}
	return nil
}

// EnsureProfile creates an empty profile for userID if missing.
func (s *Store) EnsureProfile(ctx context.Context, userID, username string) error {
	if userID == "" {
		return fmt.Errorf("ensure profile: empty user id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, current_rank)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, username, string(s.ranks.RankFor(0)))
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// EarnCoins applies a Coin grant atomically against the pool and the user.
//
// The transaction checks the idempotency key, decrements the pool only if
// it holds enough Coins, credits the user and records the grant. A replayed
// key returns the original amount with Replayed=true and changes nothing.
// An overdraft returns ErrPoolExhausted and changes nothing.
func (s *Store) EarnCoins(ctx context.Context, req EarnRequest) (EarnResult, error) {
	if req.UserID == "" || req.IdempotencyKey == "" || req.BaseReward <= 0 || !validSources[req.SourceType] {
		return EarnResult{}, fmt.Errorf("earn coins: %w", ErrInvalidGrant)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT credited FROM coin_grants WHERE idempotency_key = ?
	`, req.IdempotencyKey).Scan(&existing)
	if err == nil {
		return EarnResult{Credited: existing, Replayed: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return EarnResult{}, fmt.Errorf("earn coins: check key: %w", err)
	}

	if err := profileExists(ctx, tx, req.UserID); err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: %w", err)
	}

	amount := req.BaseReward
	res, err := tx.ExecContext(ctx, `
		UPDATE coin_pool SET remaining = remaining - ?
		WHERE id = 1 AND remaining >= ?
	`, amount, amount)
	if err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: debit pool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: rows affected: %w", err)
	}
	if n == 0 {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM coin_pool WHERE id = 1`).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return EarnResult{}, fmt.Errorf("earn coins: %w", ErrPoolNotInitialized)
		}
		return EarnResult{}, fmt.Errorf("earn coins: %w", ErrPoolExhausted)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles SET coins = coins + ? WHERE id = ?
	`, amount, req.UserID); err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: credit user: %w", err)
	}

	var contentID any
	if req.ContentID != "" {
		contentID = req.ContentID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coin_grants
		(idempotency_key, user_id, source_type, content_id, base_reward, credited, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.IdempotencyKey,
		req.UserID,
		req.SourceType,
		contentID,
		req.BaseReward,
		amount,
		s.clock.Now().UnixMilli(),
	); err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: record grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return EarnResult{}, fmt.Errorf("earn coins: commit: %w", err)
	}
	return EarnResult{Credited: amount}, nil
}

// AddXP applies an XP grant and recomputes the user's rank. XP is
// independent of the Coin pool. A replayed key changes nothing.
func (s *Store) AddXP(ctx context.Context, req XPRequest) (XPResult, error) {
	if req.UserID == "" || req.IdempotencyKey == "" || req.Amount <= 0 {
		return XPResult{}, fmt.Errorf("add xp: %w", ErrInvalidGrant)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return XPResult{}, fmt.Errorf("add xp: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT amount FROM xp_grants WHERE idempotency_key = ?
	`, req.IdempotencyKey).Scan(&existing)
	replayed := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return XPResult{}, fmt.Errorf("add xp: check key: %w", err)
	}

	if err := profileExists(ctx, tx, req.UserID); err != nil {
		return XPResult{}, fmt.Errorf("add xp: %w", err)
	}

	credited := existing
	if !replayed {
		credited = req.Amount
		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET xp_points = xp_points + ? WHERE id = ?
		`, req.Amount, req.UserID); err != nil {
			return XPResult{}, fmt.Errorf("add xp: credit user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO xp_grants (idempotency_key, user_id, amount, created_at)
			VALUES (?, ?, ?, ?)
		`, req.IdempotencyKey, req.UserID, req.Amount, s.clock.Now().UnixMilli()); err != nil {
			return XPResult{}, fmt.Errorf("add xp: record grant: %w", err)
		}
	}

	var xp int64
	if err := tx.QueryRowContext(ctx, `SELECT xp_points FROM profiles WHERE id = ?`, req.UserID).Scan(&xp); err != nil {
		return XPResult{}, fmt.Errorf("add xp: read total: %w", err)
	}
	current := string(s.ranks.RankFor(xp))
	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles SET current_rank = ? WHERE id = ?
	`, current, req.UserID); err != nil {
		return XPResult{}, fmt.Errorf("add xp: update rank: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return XPResult{}, fmt.Errorf("add xp: commit: %w", err)
	}
	return XPResult{Credited: credited, Replayed: replayed, XPPoints: xp, CurrentRank: current}, nil
}

// SetSavedPosts overwrites the user's saved post list.
func (s *Store) SetSavedPosts(ctx context.Context, userID string, postIDs []string) error {
	if postIDs == nil {
		postIDs = []string{}
	}
	data, err := json.Marshal(postIDs)
	if err != nil {
		return fmt.Errorf("set saved posts: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET saved_posts = ? WHERE id = ?
	`, string(data), userID)
	if err != nil {
		return fmt.Errorf("set saved posts: %w", err)
	}
	return requireOneRow(res, "set saved posts")
}

// IncrementPostsRead bumps the read counter and returns the new value.
func (s *Store) IncrementPostsRead(ctx context.Context, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("increment posts read: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE profiles SET posts_read = posts_read + 1 WHERE id = ?
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("increment posts read: %w", err)
	}
	if err := requireOneRow(res, "increment posts read"); err != nil {
		return 0, err
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT posts_read FROM profiles WHERE id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment posts read: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("increment posts read: commit: %w", err)
	}
	return n, nil
}

// profileExists returns ErrProfileNotFound when userID has no profile.
func profileExists(ctx context.Context, tx *sql.Tx, userID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrProfileNotFound)
	}
	return nil
}
