package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	service "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/domain/model"
)

const defaultTopLimit = 10

// PlayersHandler handles player requests.
type PlayersHandler struct {
	responder
	deps     PlayerService
	maxLimit int
}

type playerRequest struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	RegisteredAt time.Time             `json:"registeredAt"`
	Resources    model.PlayerResources `json:"resources"`
}

type evaluateRequest struct {
	Activity   model.ActivitySample `json:"activity"`
	StatusText string               `json:"statusText"`
}

// HandleRegister handles POST /players requests.
func (h *PlayersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_player"
	var req playerRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.RegisterPlayer(r.Context(), model.Player{
		ID:           req.ID,
		Name:         req.Name,
		RegisteredAt: req.RegisteredAt,
		Resources:    req.Resources,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleGet handles GET /players/{id} requests.
func (h *PlayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	v, err := h.deps.Player(r.Context(), id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleTop handles GET /players/top?limit=N requests.
func (h *PlayersHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.top_players"
	n := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.fail(w, r, op, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		h.fail(w, r, op, fmt.Errorf("%w: limit above %d", ErrLimitExceeded, h.maxLimit))
		return
	}
	players, err := h.deps.TopPlayers(r.Context(), n)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// HandleEvaluate handles POST /players/{id}/evaluate requests.
func (h *PlayersHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_player"
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), service.EvaluationRequest{
		PlayerID:   id,
		Activity:   req.Activity,
		StatusText: req.StatusText,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEvaluateBatch handles POST /evaluations requests. Per-item failures
// are reported in the body; the batch itself always answers 200.
func (h *PlayersHandler) HandleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_batch"
	var reqs []service.EvaluationRequest
	if err := decode(r, &reqs); err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.EvaluateAll(r.Context(), reqs))
}

type activityRequest struct {
	Posts    []postRequest    `json:"posts"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Statuses map[int64]string `json:"statuses"`
}

// HandleEvaluateActivity handles POST /evaluations/activity requests: the
// daily cycle over every registered player with activity taken from posts
// inside [from, to).
func (h *PlayersHandler) HandleEvaluateActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_activity"
	var req activityRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	if req.From.IsZero() || !req.To.After(req.From) {
		h.fail(w, r, op, fmt.Errorf("%w: from must be set and before to", ErrBadRequest))
		return
	}

	posts := make([]model.Post, len(req.Posts))
	for i := range req.Posts {
		posts[i] = req.Posts[i].post()
	}
	report, err := h.deps.EvaluateActivity(r.Context(), posts, req.From, req.To, req.Statuses)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
