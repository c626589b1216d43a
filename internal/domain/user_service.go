package domain

import (
	"context"
	"log/slog"

	"github.com/zhirschtritt/blogapi/internal/events"
)

const (
	UserCreatedEvent = "user.created"
	UserUpdatedEvent = "user.updated"
	UserDeletedEvent = "user.deleted"
)

type UserService struct {
	userRepo  UserRepository
	publisher *publisher
}

func NewUserService(userRepo UserRepository, eventConsumer events.EventConsumer, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		publisher: newPublisher(eventConsumer, logger),
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	user, err := s.userRepo.Create(ctx, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(UserCreatedEvent, "user", user.ID, userData(user)))
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	user, err := s.userRepo.Update(ctx, id, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(UserUpdatedEvent, "user", user.ID, userData(user)))
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(UserDeletedEvent, "user", user.ID, userData(user)))
	return user, nil
}

func (s *UserService) ListUserPosts(ctx context.Context, id int64) ([]Post, error) {
	return s.userRepo.ListPosts(ctx, id)
}

func userData(u *User) map[string]any {
	return map[string]any{
		"user_id": u.ID,
		"name":    u.Name,
		"email":   u.Email,
	}
}
