package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/blogapi/internal/domain"
)

type PostService interface {
	ListPosts(ctx context.Context) ([]domain.Post, error)
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	CreatePostForUser(ctx context.Context, userID int64, req domain.CreatePostRequest) (*domain.Post, error)
	UpdatePost(ctx context.Context, id int64, req domain.UpdatePostRequest) (*domain.Post, error)
	DeletePost(ctx context.Context, id int64) (*domain.Post, error)
}

type PostRouter struct {
	postService PostService
	logger      *slog.Logger
}

func NewPostRouter(postService PostService, logger *slog.Logger) *PostRouter {
	return &PostRouter{
		postService: postService,
		logger:      logger,
	}
}

func (pr *PostRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", pr.listPosts)
	r.Get("/{id}", pr.getPost)
	r.Put("/{id}", pr.updatePost)
	r.Delete("/{id}", pr.deletePost)
	return r
}

func (pr *PostRouter) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := pr.postService.ListPosts(r.Context())
	if err != nil {
		pr.fail(w, r, err, "error fetching posts")
		return
	}
	writeJSON(w, pr.logger, http.StatusOK, posts)
}

func (pr *PostRouter) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pr.postID(w, r)
	if !ok {
		return
	}

	post, err := pr.postService.GetPost(r.Context(), id)
	if err != nil {
		pr.fail(w, r, err, "error fetching post")
		return
	}
	writeJSON(w, pr.logger, http.StatusOK, post)
}

// createPost serves POST /users/{id}/posts.
func (pr *PostRouter) createPost(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, pr.logger, http.StatusBadRequest, "invalid user id", err)
		return
	}

	var req domain.CreatePostRequest
	if status, msg, err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, pr.logger, status, msg, err)
		return
	}

	post, err := pr.postService.CreatePostForUser(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, r, pr.logger, http.StatusNotFound, "user not found, cannot create post", err)
			return
		}
		pr.fail(w, r, err, "error creating post")
		return
	}
	writeJSON(w, pr.logger, http.StatusOK, post)
}

func (pr *PostRouter) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pr.postID(w, r)
	if !ok {
		return
	}

	var req domain.UpdatePostRequest
	if status, msg, err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, pr.logger, status, msg, err)
		return
	}

	post, err := pr.postService.UpdatePost(r.Context(), id, req)
	if err != nil {
		pr.fail(w, r, err, "error updating post")
		return
	}
	writeJSON(w, pr.logger, http.StatusOK, post)
}

func (pr *PostRouter) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pr.postID(w, r)
	if !ok {
		return
	}

	post, err := pr.postService.DeletePost(r.Context(), id)
	if err != nil {
		pr.fail(w, r, err, "error deleting post")
		return
	}
	writeJSON(w, pr.logger, http.StatusOK, post)
}

func (pr *PostRouter) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, pr.logger, http.StatusBadRequest, "invalid post id", err)
		return 0, false
	}
	return id, true
}

func (pr *PostRouter) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, r, pr.logger, http.StatusNotFound, "post not found", err)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, r, pr.logger, http.StatusBadRequest, "invalid request body", err)
	default:
		writeError(w, r, pr.logger, http.StatusInternalServerError, fallback, err)
	}
}
