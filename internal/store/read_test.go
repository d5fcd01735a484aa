package store

import (
	"context"
	"errors"
	"testing"
)

func TestGetProfile_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetProfile(context.Background(), "nobody")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetProfile() error = %v, expected ErrProfileNotFound", err)
	}
}

func TestGetProfile_Defaults(t *testing.T) {
	s := createTestStore(t)
	seedStore(t, s, 0, "u1")

	p, err := s.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile() failed: %v", err)
	}
	if p.CurrentRank != "JJC" {
		t.Errorf("rank = %q, expected JJC", p.CurrentRank)
	}
	if p.SavedPosts == nil {
		t.Error("saved posts is nil, expected empty slice")
	}
}

func TestCoinPool_NotInitialized(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CoinPool(context.Background())
	if !errors.Is(err, ErrPoolNotInitialized) {
		t.Errorf("CoinPool() error = %v, expected ErrPoolNotInitialized", err)
	}
}

func TestLeaderboard_OrderedByXPThenID(t *testing.T) {
	s := createTestStore(t)
	seedStore(t, s, 0, "b", "a", "c")
	ctx := context.Background()

	grants := map[string]int{"a": 50, "b": 50, "c": 200}
	for user, xp := range grants {
		if _, err := s.AddXP(ctx, XPRequest{UserID: user, Amount: xp, IdempotencyKey: "x-" + user}); err != nil {
			t.Fatalf("AddXP(%q) failed: %v", user, err)
		}
	}

	entries, err := s.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard() failed: %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, expected %d", len(entries), len(want))
	}
	for i, id := range want {
		if entries[i].UserID != id || entries[i].Position != i+1 {
			t.Errorf("entries[%d] = %+v, expected %s at %d", i, entries[i], id, i+1)
		}
	}
}

func TestCoinGrants_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	seedStore(t, s, 100, "u1")
	ctx := context.Background()

	for _, k := range []string{"k1", "k2"} {
		if _, err := s.EarnCoins(ctx, EarnRequest{UserID: "u1", SourceType: "read", BaseReward: 1, IdempotencyKey: k, ContentID: "p-" + k}); err != nil {
			t.Fatalf("EarnCoins(%q) failed: %v", k, err)
		}
	}

	grants, err := s.CoinGrants(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("CoinGrants() failed: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("len = %d, expected 2", len(grants))
	}
	for _, g := range grants {
		if g.Credited != 1 || g.ContentID != "p-"+g.IdempotencyKey {
			t.Errorf("grant = %+v", g)
		}
	}
}
