package vectorstore

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps embeddings in a local SQLite file. Vectors are stored as
// JSON text and similarity is computed in process, which is fine at the
// corpus sizes a single analyst produces.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite vector store at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "vectorstore: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS company_vectors (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	name_folded TEXT NOT NULL,
	website     TEXT,
	description TEXT,
	vector      TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_company_vectors_name_folded ON company_vectors(name_folded);
`
	if _, err := db.ExecContext(ctx, migration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "vectorstore: migrate sqlite")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return eris.New("vectorstore: entry has no id")
	}
	vec, err := encodeJSON(entry.Vector)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO company_vectors (id, name, name_folded, website, description, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_folded = excluded.name_folded,
			website = excluded.website,
			description = excluded.description,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		entry.ID, entry.Name, foldName(entry.Name), entry.Website, entry.Description, vec, time.Now().UTC(),
	)
	return eris.Wrap(err, "vectorstore: upsert")
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, website, description, vector
		FROM company_vectors WHERE name_folded = ? LIMIT 1`, foldName(name))

	var e Entry
	var website, description sql.NullString
	var vec string
	if err := row.Scan(&e.ID, &e.Name, &website, &description, &vec); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "vectorstore: find by name")
	}
	e.Website = website.String
	e.Description = description.String

	v, err := decodeJSON(vec)
	if err != nil {
		return nil, err
	}
	e.Vector = v
	return &e, nil
}

func (s *SQLiteStore) KNearest(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, website, description, vector FROM company_vectors`)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: scan vectors")
	}
	defer rows.Close() //nolint:errcheck

	var hits []Hit
	for rows.Next() {
		var e Entry
		var website, description sql.NullString
		var vec string
		if err := rows.Scan(&e.ID, &e.Name, &website, &description, &vec); err != nil {
			return nil, eris.Wrap(err, "vectorstore: scan row")
		}
		e.Website = website.String
		e.Description = description.String

		v, err := decodeJSON(vec)
		if err != nil {
			return nil, err
		}
		e.Vector = v
		hits = append(hits, Hit{Entry: e, Score: cosineScore(vector, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "vectorstore: iterate rows")
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
