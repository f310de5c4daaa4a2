// Package vectorstore persists company embeddings and serves nearest
// neighbor queries. Two backends: a SQLite file for single-user runs and
// Postgres with pgvector for shared deployments.
package vectorstore

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Entry is one stored company with its embedding.
type Entry struct {
	ID          string
	Name        string
	Website     string
	Description string
	Vector      []float32
}

// Hit is a nearest-neighbor match. Score is cosine similarity mapped onto
// [0,1], where 1 means identical direction.
type Hit struct {
	Entry
	Score float64
}

// Store is the vector persistence interface.
type Store interface {
	// Upsert inserts or replaces the entry under its ID.
	Upsert(ctx context.Context, entry Entry) error
	// FindByName looks up an entry by case-folded exact name. Returns nil
	// when absent.
	FindByName(ctx context.Context, name string) (*Entry, error)
	// KNearest returns up to k entries closest to vector, best first.
	KNearest(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Close() error
}

// Open creates a Store for the configured driver: "sqlite" with a file DSN
// or "postgres" with a connection string.
func Open(ctx context.Context, driver, dsn string, dimension int) (Store, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn, dimension)
	default:
		return nil, eris.Errorf("vectorstore: unknown driver %q", driver)
	}
}

// foldName canonicalizes a company name for lookup: Unicode case folding
// plus whitespace trimming happens at write and read so "Acme" and "ACME"
// collide.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
