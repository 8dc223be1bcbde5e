package api

import "net/http"

// SocialHandler handles relationship and profile requests.
type SocialHandler struct {
	responder
	deps SocialService
}

// HandleRelationship handles GET /relationships/{source}/{target} requests.
func (h *SocialHandler) HandleRelationship(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_relationship"
	source, err := pathID(r, "source")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	target, err := pathID(r, "target")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	entry, err := h.deps.Relationship(r.Context(), source, target)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleProfile handles GET /profiles/{id} requests.
func (h *SocialHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.Profile(r.Context(), id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleProfileHistory handles GET /profiles/{id}/history requests.
func (h *SocialHandler) HandleProfileHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile_history"
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	hist, err := h.deps.ProfileHistory(r.Context(), id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// HandleRecompute handles POST /profiles/recompute requests.
func (h *SocialHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.RecomputeAllProfiles(r.Context()))
}
