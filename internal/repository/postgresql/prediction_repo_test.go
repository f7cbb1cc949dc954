package postgresql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go-leaf-inspector/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMapError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{"pq unique", &pq.Error{Code: "23505"}, repository.ErrDuplicateEntry},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, repository.ErrDuplicateEntry},
		{"pq not null", &pq.Error{Code: "23502"}, repository.ErrInvalidRecord},
		{"pgx check", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"}), repository.ErrInvalidRecord},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapError(tc.err); !errors.Is(got, tc.want) {
				t.Errorf("mapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	plain := errors.New("boom")
	if got := mapError(plain); got != plain {
		t.Errorf("Expected plain errors to pass through, got %v", got)
	}
}

func TestEscapeLike(t *testing.T) {
	testCases := map[string]string{
		"leaf":       "leaf",
		"100%":       `100\%`,
		"corn_leaf":  `corn\_leaf`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range testCases {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	if _, err := NewDB(context.Background(), "sqlite3", "file::memory:"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
