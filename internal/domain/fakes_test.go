package domain

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/zhirschtritt/blogapi/internal/events"
)

// memoryStore backs both repository interfaces with maps so the service
// tests can check cross-entity properties.
type memoryStore struct {
	mu        sync.Mutex
	users     map[int64]User
	posts     map[int64]Post
	nextUser  int64
	nextPost  int64
	failWrite error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]User{}, posts: map[int64]Post{}}
}

type memoryUsers struct{ *memoryStore }
type memoryPosts struct{ *memoryStore }

func (s memoryUsers) List(context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []User{}
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s memoryUsers) GetByID(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s memoryUsers) emailTaken(email string, except int64) bool {
	for _, u := range s.users {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (s memoryUsers) Create(_ context.Context, name, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	if s.emailTaken(email, 0) {
		return nil, ErrUserAlreadyExists
	}
	s.nextUser++
	u := User{ID: s.nextUser, Name: name, Email: email}
	s.users[u.ID] = u
	return &u, nil
}

func (s memoryUsers) Update(_ context.Context, id int64, name, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return nil, ErrUserNotFound
	}
	if s.emailTaken(email, id) {
		return nil, ErrUserAlreadyExists
	}
	u := User{ID: id, Name: name, Email: email}
	s.users[id] = u
	return &u, nil
}

func (s memoryUsers) Delete(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	delete(s.users, id)
	for pid, p := range s.posts {
		if p.UserID == id {
			delete(s.posts, pid)
		}
	}
	return &u, nil
}

func (s memoryUsers) ListPosts(_ context.Context, id int64) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := []Post{}
	for _, p := range s.posts {
		if p.UserID == id {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (s memoryPosts) List(context.Context) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := []Post{}
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (s memoryPosts) GetByID(_ context.Context, id int64) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return &p, nil
}

func (s memoryPosts) CreateForUser(_ context.Context, userID int64, title, content string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	s.nextPost++
	p := Post{ID: s.nextPost, Title: title, Content: content, UserID: userID}
	s.posts[p.ID] = p
	return &p, nil
}

func (s memoryPosts) Update(_ context.Context, id int64, title, content string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p.Title, p.Content = title, content
	s.posts[id] = p
	return &p, nil
}

func (s memoryPosts) Delete(_ context.Context, id int64) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	delete(s.posts, id)
	return &p, nil
}

type recordingConsumer struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (c *recordingConsumer) Consume(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConsumer) Start(context.Context) {}
func (c *recordingConsumer) Stop()                 {}

func (c *recordingConsumer) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.events))
	for i, e := range c.events {
		types[i] = e.Type
	}
	return types
}

var errStoreDown = errors.New("store down")
