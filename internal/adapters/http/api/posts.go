package api

import (
	"net/http"
	"time"

	service "github.com/okian/whisper/internal/app"
	"github.com/okian/whisper/internal/domain/model"
)

// PostsHandler handles post submissions.
type PostsHandler struct {
	responder
	deps PostService
}

type postRequest struct {
	PostID     string    `json:"postId"`
	AuthorID   int64     `json:"authorId"`
	AuthorName string    `json:"authorName"`
	TopicID    string    `json:"topicId"`
	Content    string    `json:"content"`
	PostedAt   time.Time `json:"postedAt"`
}

func (r *postRequest) post() model.Post {
	return model.Post{
		PostID:     r.PostID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		TopicID:    r.TopicID,
		Content:    r.Content,
		PostedAt:   r.PostedAt,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostSubmit handles POST /posts requests.
func (h *PostsHandler) HandlePostSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_post"
	var req postRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}

	status, err := h.deps.SubmitPost(r.Context(), req.post())
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if status == service.SubmitDuplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: string(status), Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: string(status)})
}
