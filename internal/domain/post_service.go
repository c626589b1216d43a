package domain

import (
	"context"
	"log/slog"

	"github.com/zhirschtritt/blogapi/internal/events"
)

const (
	PostCreatedEvent = "post.created"
	PostUpdatedEvent = "post.updated"
	PostDeletedEvent = "post.deleted"
)

type PostService struct {
	postRepo  PostRepository
	publisher *publisher
}

func NewPostService(postRepo PostRepository, eventConsumer events.EventConsumer, logger *slog.Logger) *PostService {
	return &PostService{
		postRepo:  postRepo,
		publisher: newPublisher(eventConsumer, logger),
	}
}

func (s *PostService) ListPosts(ctx context.Context) ([]Post, error) {
	return s.postRepo.List(ctx)
}

func (s *PostService) GetPost(ctx context.Context, id int64) (*Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) CreatePostForUser(ctx context.Context, userID int64, req CreatePostRequest) (*Post, error) {
	post, err := s.postRepo.CreateForUser(ctx, userID, req.Title, req.Content)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(PostCreatedEvent, "post", post.ID, postData(post)))
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id int64, req UpdatePostRequest) (*Post, error) {
	post, err := s.postRepo.Update(ctx, id, req.Title, req.Content)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(PostUpdatedEvent, "post", post.ID, postData(post)))
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, id int64) (*Post, error) {
	post, err := s.postRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, events.New(PostDeletedEvent, "post", post.ID, postData(post)))
	return post, nil
}

func postData(p *Post) map[string]any {
	return map[string]any{
		"post_id": p.ID,
		"user_id": p.UserID,
		"title":   p.Title,
	}
}
