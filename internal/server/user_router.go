package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/blogapi/internal/domain"
)

type UserService interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	UpdateUser(ctx context.Context, id int64, req domain.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) (*domain.User, error)
	ListUserPosts(ctx context.Context, id int64) ([]domain.Post, error)
}

type UserRouter struct {
	userService UserService
	logger      *slog.Logger
}

func NewUserRouter(userService UserService, logger *slog.Logger) *UserRouter {
	return &UserRouter{
		userService: userService,
		logger:      logger,
	}
}

func (ur *UserRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", ur.listUsers)
	r.Post("/", ur.createUser)
	r.Get("/{id}", ur.getUser)
	r.Put("/{id}", ur.updateUser)
	r.Delete("/{id}", ur.deleteUser)
	r.Get("/{id}/posts", ur.listUserPosts)
	return r
}

func (ur *UserRouter) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ur.userService.ListUsers(r.Context())
	if err != nil {
		ur.fail(w, r, err, "error fetching users")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, users)
}

func (ur *UserRouter) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	user, err := ur.userService.GetUser(r.Context(), id)
	if err != nil {
		ur.fail(w, r, err, "error fetching user")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, user)
}

func (ur *UserRouter) createUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if status, msg, err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ur.logger, status, msg, err)
		return
	}

	user, err := ur.userService.CreateUser(r.Context(), req)
	if err != nil {
		ur.fail(w, r, err, "error creating user")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, user)
}

func (ur *UserRouter) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateUserRequest
	if status, msg, err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ur.logger, status, msg, err)
		return
	}

	user, err := ur.userService.UpdateUser(r.Context(), id, req)
	if err != nil {
		ur.fail(w, r, err, "error updating user")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, user)
}

func (ur *UserRouter) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	user, err := ur.userService.DeleteUser(r.Context(), id)
	if err != nil {
		ur.fail(w, r, err, "error deleting user")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, user)
}

func (ur *UserRouter) listUserPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	posts, err := ur.userService.ListUserPosts(r.Context(), id)
	if err != nil {
		ur.fail(w, r, err, "error fetching user posts")
		return
	}
	writeJSON(w, ur.logger, http.StatusOK, posts)
}

func (ur *UserRouter) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, ur.logger, http.StatusBadRequest, "invalid user id", err)
		return 0, false
	}
	return id, true
}

func (ur *UserRouter) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, r, ur.logger, http.StatusNotFound, "user not found", err)
	case errors.Is(err, domain.ErrUserAlreadyExists):
		writeError(w, r, ur.logger, http.StatusBadRequest, "user already exists", err)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, r, ur.logger, http.StatusBadRequest, "invalid request body", err)
	default:
		writeError(w, r, ur.logger, http.StatusInternalServerError, fallback, err)
	}
}
