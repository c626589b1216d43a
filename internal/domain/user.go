package domain

import "context"

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type UpdateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type UserRepository interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, name, email string) (*User, error)
	Update(ctx context.Context, id int64, name, email string) (*User, error)
	Delete(ctx context.Context, id int64) (*User, error)
	ListPosts(ctx context.Context, id int64) ([]Post, error)
}
