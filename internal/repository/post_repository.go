package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/zhirschtritt/blogapi/internal/domain"
)

// typecheck
var _ domain.PostRepository = new(DBPostRepository)

type DBPostRepository struct {
	db DBTX

	listQuery     string
	getQuery      string
	lockUserQuery string
	createQuery   string
	updateQuery   string
	deleteQuery   string
}

func NewDBPostRepository(db DBTX, tables Tables) *DBPostRepository {
	tables = tables.withDefaults()
	users := quoteIdent(tables.Users)
	posts := quoteIdent(tables.Posts)

	return &DBPostRepository{
		db:        db,
		listQuery: fmt.Sprintf(`SELECT id, title, content, user_id FROM %s ORDER BY id`, posts),
		getQuery:  fmt.Sprintf(`SELECT id, title, content, user_id FROM %s WHERE id = $1`, posts),
		// FOR KEY SHARE keeps the user from being deleted until the insert commits.
		lockUserQuery: fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR KEY SHARE`, users),
		createQuery: fmt.Sprintf(
			`INSERT INTO %s (title, content, user_id) VALUES ($1, $2, $3) RETURNING id, title, content, user_id`, posts),
		updateQuery: fmt.Sprintf(
			`UPDATE %s SET title = $1, content = $2 WHERE id = $3 RETURNING id, title, content, user_id`, posts),
		deleteQuery: fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING id, title, content, user_id`, posts),
	}
}

func (r *DBPostRepository) List(ctx context.Context) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, r.listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return collectPosts(rows)
}

func (r *DBPostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, r.getQuery, id))
	if err != nil {
		return nil, postError("get post by ID", err)
	}
	return post, nil
}

func (r *DBPostRepository) CreateForUser(ctx context.Context, userID int64, title, content string) (*domain.Post, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	post, err := r.createInTx(ctx, tx, userID, title, content)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return post, nil
}

func (r *DBPostRepository) createInTx(ctx context.Context, tx pgx.Tx, userID int64, title, content string) (*domain.Post, error) {
	var lockedID int64
	if err := tx.QueryRow(ctx, r.lockUserQuery, userID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	post, err := scanPost(tx.QueryRow(ctx, r.createQuery, title, content, userID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, postError("create post", err)
	}
	return post, nil
}

func (r *DBPostRepository) Update(ctx context.Context, id int64, title, content string) (*domain.Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, r.updateQuery, title, content, id))
	if err != nil {
		return nil, postError("update post", err)
	}
	return post, nil
}

func (r *DBPostRepository) Delete(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, r.deleteQuery, id))
	if err != nil {
		return nil, postError("delete post", err)
	}
	return post, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &post.UserID); err != nil {
		return nil, err
	}
	return &post, nil
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Content, &post.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}

	return posts, nil
}

func postError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrPostNotFound
	case isNotNullViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
