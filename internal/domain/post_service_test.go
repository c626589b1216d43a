package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreateForMissingUser(t *testing.T) {
	consumer := &recordingConsumer{}
	_, posts, _ := newServices(consumer)
	ctx := context.Background()

	post, err := posts.CreatePostForUser(ctx, 999, CreatePostRequest{Title: "t", Content: "c"})
	assert.Nil(t, post)
	assert.ErrorIs(t, err, ErrUserNotFound)

	all, err := posts.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, consumer.types())
}

func TestPostService_ListByUserOnlyReturnsOwnPosts(t *testing.T) {
	consumer := &recordingConsumer{}
	users, posts, _ := newServices(consumer)
	ctx := context.Background()

	ana, err := users.CreateUser(ctx, CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	bo, err := users.CreateUser(ctx, CreateUserRequest{Name: "Bo", Email: "bo@x.com"})
	require.NoError(t, err)

	first, err := posts.CreatePostForUser(ctx, ana.ID, CreatePostRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, Post{ID: 1, Title: "t", Content: "c", UserID: 1}, *first)

	_, err = posts.CreatePostForUser(ctx, bo.ID, CreatePostRequest{Title: "other", Content: "c"})
	require.NoError(t, err)

	own, err := users.ListUserPosts(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []Post{{ID: 1, Title: "t", Content: "c", UserID: 1}}, own)

	none, err := users.ListUserPosts(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostService_UpdateMissingDoesNotCreate(t *testing.T) {
	consumer := &recordingConsumer{}
	_, posts, _ := newServices(consumer)
	ctx := context.Background()

	_, err := posts.UpdatePost(ctx, 7, UpdatePostRequest{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrPostNotFound)

	all, err := posts.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPostService_UpdateKeepsOwner(t *testing.T) {
	consumer := &recordingConsumer{}
	users, posts, _ := newServices(consumer)
	ctx := context.Background()

	ana, err := users.CreateUser(ctx, CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	post, err := posts.CreatePostForUser(ctx, ana.ID, CreatePostRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	updated, err := posts.UpdatePost(ctx, post.ID, UpdatePostRequest{Title: "t2", Content: "c2"})
	require.NoError(t, err)
	assert.Equal(t, ana.ID, updated.UserID)
	assert.Equal(t, "t2", updated.Title)

	deleted, err := posts.DeletePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, deleted.ID)

	_, err = posts.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)

	assert.Equal(t, []string{UserCreatedEvent, PostCreatedEvent, PostUpdatedEvent, PostDeletedEvent}, consumer.types())
}
