package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/zhirschtritt/blogapi/internal/domain"
)

// typecheck
var _ domain.UserRepository = new(DBUserRepository)

type DBUserRepository struct {
	db DBTX

	listQuery      string
	getQuery       string
	createQuery    string
	updateQuery    string
	deleteQuery    string
	listPostsQuery string
}

func NewDBUserRepository(db DBTX, tables Tables) *DBUserRepository {
	tables = tables.withDefaults()
	users := quoteIdent(tables.Users)
	posts := quoteIdent(tables.Posts)

	return &DBUserRepository{
		db:          db,
		listQuery:   fmt.Sprintf(`SELECT id, name, email FROM %s ORDER BY id`, users),
		getQuery:    fmt.Sprintf(`SELECT id, name, email FROM %s WHERE id = $1`, users),
		createQuery: fmt.Sprintf(`INSERT INTO %s (name, email) VALUES ($1, $2) RETURNING id, name, email`, users),
		updateQuery: fmt.Sprintf(`UPDATE %s SET name = $1, email = $2 WHERE id = $3 RETURNING id, name, email`, users),
		deleteQuery: fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING id, name, email`, users),
		listPostsQuery: fmt.Sprintf(
			`SELECT id, title, content, user_id FROM %s WHERE user_id = $1 ORDER BY id`, posts),
	}
}

func (r *DBUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, r.listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

func (r *DBUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, r.getQuery, id))
	if err != nil {
		return nil, userError("get user by ID", err)
	}
	return user, nil
}

func (r *DBUserRepository) Create(ctx context.Context, name, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, r.createQuery, name, email))
	if err != nil {
		return nil, userError("create user", err)
	}
	return user, nil
}

func (r *DBUserRepository) Update(ctx context.Context, id int64, name, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, r.updateQuery, name, email, id))
	if err != nil {
		return nil, userError("update user", err)
	}
	return user, nil
}

func (r *DBUserRepository) Delete(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, r.deleteQuery, id))
	if err != nil {
		return nil, userError("delete user", err)
	}
	return user, nil
}

// ListPosts returns the posts owned by the user. An unknown user yields an
// empty slice, not an error.
func (r *DBUserRepository) ListPosts(ctx context.Context, id int64) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, r.listPostsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by user: %w", err)
	}
	return collectPosts(rows)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email); err != nil {
		return nil, err
	}
	return &user, nil
}

func userError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrUserNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrUserAlreadyExists, err)
	case isNotNullViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
