package domain

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhirschtritt/blogapi/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServices(consumer events.EventConsumer) (*UserService, *PostService, *memoryStore) {
	store := newMemoryStore()
	return NewUserService(memoryUsers{store}, consumer, discardLogger()),
		NewPostService(memoryPosts{store}, consumer, discardLogger()),
		store
}

func TestUserService_CreateThenGet(t *testing.T) {
	consumer := &recordingConsumer{}
	users, _, _ := newServices(consumer)
	ctx := context.Background()

	created, err := users.CreateUser(ctx, CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	got, err := users.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "ana@x.com", got.Email)

	require.Len(t, consumer.events, 1)
	event := consumer.events[0]
	assert.Equal(t, UserCreatedEvent, event.Type)
	assert.Equal(t, "user", event.AggregateType)
	assert.Equal(t, "1", event.AggregateID)
	assert.Equal(t, "ana@x.com", event.Data["email"])
}

func TestUserService_DuplicateEmail(t *testing.T) {
	consumer := &recordingConsumer{}
	users, _, _ := newServices(consumer)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)

	_, err = users.CreateUser(ctx, CreateUserRequest{Name: "Other", Email: "ana@x.com"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.Equal(t, []string{UserCreatedEvent}, consumer.types())
}

func TestUserService_UpdateAndDelete(t *testing.T) {
	consumer := &recordingConsumer{}
	users, _, _ := newServices(consumer)
	ctx := context.Background()

	_, err := users.UpdateUser(ctx, 1, UpdateUserRequest{Name: "x", Email: "x@x.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	created, err := users.CreateUser(ctx, CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)

	updated, err := users.UpdateUser(ctx, created.ID, UpdateUserRequest{Name: "Ana B", Email: "anab@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana B", updated.Name)

	deleted, err := users.DeleteUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = users.GetUser(ctx, created.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = users.DeleteUser(ctx, created.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Equal(t, []string{UserCreatedEvent, UserUpdatedEvent, UserDeletedEvent}, consumer.types())
}

func TestUserService_PublishFailureDoesNotFailWrite(t *testing.T) {
	consumer := &recordingConsumer{err: events.ErrConsumerFull}
	users, _, _ := newServices(consumer)

	user, err := users.CreateUser(context.Background(), CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
}

func TestUserService_StoreFailure(t *testing.T) {
	consumer := &recordingConsumer{}
	users, _, store := newServices(consumer)
	store.failWrite = errStoreDown

	_, err := users.CreateUser(context.Background(), CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, consumer.types())
}

func TestUserService_NilConsumer(t *testing.T) {
	store := newMemoryStore()
	users := NewUserService(memoryUsers{store}, nil, nil)

	_, err := users.CreateUser(context.Background(), CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
}
