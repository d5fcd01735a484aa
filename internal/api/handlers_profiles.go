package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ProfilePatch is the body of PATCH /profiles/{id}. Only saved_posts is
// writable; balances move through the RPCs.
type ProfilePatch struct {
	SavedPosts *[]string `json:"saved_posts"`
}

// PostsReadResponse is the body returned by POST /profiles/{id}/posts_read.
type PostsReadResponse struct {
	PostsRead int `json:"posts_read"`
}

// GetProfile handles GET /profiles/{id}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

// PatchProfile handles PATCH /profiles/{id}.
func (h *Handler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	var patch ProfilePatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		Error(w, http.StatusBadRequest, CodeBadRequest, "malformed request body")
		return
	}
	if patch.SavedPosts == nil {
		Error(w, http.StatusBadRequest, CodeBadRequest, "saved_posts is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.SetSavedPosts(r.Context(), id, *patch.SavedPosts); err != nil {
		storeError(w, err)
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

// IncrementPostsRead handles POST /profiles/{id}/posts_read.
func (h *Handler) IncrementPostsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.IncrementPostsRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	JSON(w, http.StatusOK, PostsReadResponse{PostsRead: n})
}
