package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/db"
)

// PostgresStore keeps embeddings in Postgres with the pgvector extension.
// Nearest-neighbor queries run server side via the cosine distance operator.
type PostgresStore struct {
	pool    db.Pool
	dim     int
	closeFn func()
}

// OpenPostgres connects, ensures the extension and schema, and returns the
// store. dimension fixes the vector column width.
func OpenPostgres(ctx context.Context, connString string, dimension int) (*PostgresStore, error) {
	if dimension <= 0 {
		dimension = 1536
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: parse postgres config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "vectorstore: ping")
	}

	s := &PostgresStore{pool: pool, dim: dimension, closeFn: pool.Close}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS company_vectors (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			name_folded TEXT NOT NULL,
			website     TEXT,
			description TEXT,
			embedding   vector(%d) NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS idx_company_vectors_name_folded ON company_vectors(name_folded)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "vectorstore: migrate postgres")
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return eris.New("vectorstore: entry has no id")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO company_vectors (id, name, name_folded, website, description, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_folded = EXCLUDED.name_folded,
			website = EXCLUDED.website,
			description = EXCLUDED.description,
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		entry.ID, entry.Name, foldName(entry.Name), entry.Website, entry.Description, encodePgvector(entry.Vector),
	)
	return eris.Wrap(err, "vectorstore: upsert")
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(website, ''), COALESCE(description, ''), embedding::text
		FROM company_vectors WHERE name_folded = $1 LIMIT 1`, foldName(name))

	var e Entry
	var vec string
	if err := row.Scan(&e.ID, &e.Name, &e.Website, &e.Description, &vec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "vectorstore: find by name")
	}

	v, err := decodePgvector(vec)
	if err != nil {
		return nil, err
	}
	e.Vector = v
	return &e, nil
}

func (s *PostgresStore) KNearest(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	// <=> is cosine distance in [0,2]; 1 - d/2 maps it onto [0,1].
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(website, ''), COALESCE(description, ''), embedding::text,
		       1 - (embedding <=> $1::vector) / 2 AS score
		FROM company_vectors
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, encodePgvector(vector), k)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: knearest query")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var vec string
		if err := rows.Scan(&h.ID, &h.Name, &h.Website, &h.Description, &vec, &h.Score); err != nil {
			return nil, eris.Wrap(err, "vectorstore: scan hit")
		}
		v, err := decodePgvector(vec)
		if err != nil {
			return nil, err
		}
		h.Vector = v
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "vectorstore: iterate hits")
	}
	return hits, nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
