package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// EarnCoins handles POST /rpc/earn_coins.
func (h *Handler) EarnCoins(w http.ResponseWriter, r *http.Request) {
	var req store.EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, CodeBadRequest, "malformed request body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	}
	if !h.callerIs(w, r, req.UserID) {
		return
	}
	if kind, ok := reward.ActionForSource(reward.SourceType(req.SourceType)); ok {
		if limit := h.rewards[kind].Coins; req.BaseReward > limit {
			h.metrics.Rejected(string(kind))
			Error(w, http.StatusBadRequest, CodeInvalidGrant,
				fmt.Sprintf("base_reward %d exceeds the %s reward of %d", req.BaseReward, req.SourceType, limit))
			return
		}
	}

	res, err := h.store.EarnCoins(r.Context(), req)
	if err != nil {
		h.logger.Info("earn_coins rejected", "user", req.UserID, "source", req.SourceType, "error", err)
		storeError(w, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		h.metrics.GrantReplayed("coins")
	} else {
		h.metrics.GrantApplied(req.SourceType, "coins", res.Credited)
	}
	JSON(w, http.StatusOK, res)
}

// AddXP handles POST /rpc/add_xp.
func (h *Handler) AddXP(w http.ResponseWriter, r *http.Request) {
	var req store.XPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, CodeBadRequest, "malformed request body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	}
	if !h.callerIs(w, r, req.UserID) {
		return
	}
	if limit, ok := h.xpLimit(req.SourceType); !ok || req.Amount > limit {
		Error(w, http.StatusBadRequest, CodeInvalidGrant,
			fmt.Sprintf("amount %d exceeds the xp reward for %q", req.Amount, req.SourceType))
		return
	}

	res, err := h.store.AddXP(r.Context(), req)
	if err != nil {
		h.logger.Info("add_xp rejected", "user", req.UserID, "error", err)
		storeError(w, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		h.metrics.GrantReplayed("xp")
	} else {
		h.metrics.GrantApplied("xp", "xp", res.Credited)
	}
	JSON(w, http.StatusOK, res)
}

// xpLimit returns the largest XP grant allowed for source. Without a
// source the largest XP reward of any action applies.
func (h *Handler) xpLimit(source string) (int, bool) {
	if source == "" {
		limit := 0
		for _, a := range h.rewards {
			limit = max(limit, a.XP)
		}
		return limit, true
	}
	kind, ok := reward.ActionForSource(reward.SourceType(source))
	if !ok {
		return 0, false
	}
	return h.rewards[kind].XP, true
}

// callerIs rejects requests acting on behalf of another user.
func (h *Handler) callerIs(w http.ResponseWriter, r *http.Request, userID string) bool {
	if userID != IdentityFromContext(r.Context()).UserID {
		Error(w, http.StatusForbidden, CodeForbidden, "user_id does not match token")
		return false
	}
	return true
}
