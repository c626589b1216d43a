package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tables holds the table names the repositories query.
type Tables struct {
	Users string
	Posts string
}

func DefaultTables() Tables {
	return Tables{Users: "users", Posts: "posts"}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Users == "" {
		t.Users = d.Users
	}
	if t.Posts == "" {
		t.Posts = d.Posts
	}
	return t
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
