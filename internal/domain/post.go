package domain

import "context"

type Post struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  int64  `json:"user_id"`
}

type CreatePostRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type UpdatePostRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type PostRepository interface {
	List(ctx context.Context) ([]Post, error)
	GetByID(ctx context.Context, id int64) (*Post, error)
	// CreateForUser inserts a post owned by userID. It returns ErrUserNotFound
	// without inserting anything when the user does not exist.
	CreateForUser(ctx context.Context, userID int64, title, content string) (*Post, error)
	Update(ctx context.Context, id int64, title, content string) (*Post, error)
	Delete(ctx context.Context, id int64) (*Post, error)
}
