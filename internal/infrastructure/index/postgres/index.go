package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// Index is the relational chunk index: pgvector for the dense channel,
// tsvector for the lexical one. One row per chunk in document_chunks,
// the embedding in chunk_embeddings keyed by chunk id.
type Index struct {
	db   *sql.DB
	dims int
}

func NewIndex(db *sql.DB, dimensions int) *Index {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &Index{db: db, dims: dimensions}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (x *Index) Name() string { return "relational" }

func (x *Index) EnsureSchema(ctx context.Context) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	document_title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	element_type TEXT NOT NULL DEFAULT '',
	page_number INTEGER,
	bbox JSONB,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_user_document ON document_chunks(user_id, document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON document_chunks USING GIN(tsv);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id TEXT PRIMARY KEY REFERENCES document_chunks(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	embedding VECTOR(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_user ON chunk_embeddings(user_id);
`, x.dims)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const chunkColumns = `c.id, c.document_id, c.document_title, c.content, c.chunk_index, c.element_type, c.page_number, c.bbox, c.metadata`

func (x *Index) VectorQuery(ctx context.Context, userID string, vector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	where, args := buildFilter(userID, filter)
	args = append(args, vectorLiteral(vector))
	vecArg := len(args)
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT %s, 1 - (e.embedding <=> $%d::vector) AS similarity
FROM document_chunks c
JOIN chunk_embeddings e ON e.chunk_id = c.id
WHERE %s
ORDER BY e.embedding <=> $%d::vector
LIMIT $%d
`, chunkColumns, vecArg, where, vecArg, vecArg+1)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// LexicalQuery runs the prepared tsquery expression. If the expression
// does not parse (user-controlled tokens can break the syntax), it
// retries with plainto_tsquery over the de-annotated text.
func (x *Index) LexicalQuery(ctx context.Context, userID, tsquery string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	results, err := x.lexicalQuery(ctx, userID, "to_tsquery", tsquery, limit, filter)
	if err == nil {
		return results, nil
	}

	plain := strings.NewReplacer(":*", "", " & ", " ", " | ", " ").Replace(tsquery)
	results, plainErr := x.lexicalQuery(ctx, userID, "plainto_tsquery", plain, limit, filter)
	if plainErr != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	return results, nil
}

func (x *Index) lexicalQuery(ctx context.Context, userID, parser, text string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	where, args := buildFilter(userID, filter)
	args = append(args, text)
	queryArg := len(args)
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT %s, ts_rank(c.tsv, %s('english', $%d)) AS similarity
FROM document_chunks c
WHERE %s AND c.tsv @@ %s('english', $%d)
ORDER BY similarity DESC
LIMIT $%d
`, chunkColumns, parser, queryArg, where, parser, queryArg, queryArg+1)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResults(rows)
}

func (x *Index) UpsertChunk(ctx context.Context, userID string, chunk domain.Chunk, vector []float32) error {
	bboxJSON, err := marshalNullable(chunk.BBox)
	if err != nil {
		return fmt.Errorf("marshal bbox: %w", err)
	}
	metadataJSON, err := json.Marshal(orEmptyMetadata(chunk.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO document_chunks (id, user_id, document_id, document_title, content, chunk_index, element_type, page_number, bbox, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
	document_title = EXCLUDED.document_title,
	content = EXCLUDED.content,
	chunk_index = EXCLUDED.chunk_index,
	element_type = EXCLUDED.element_type,
	page_number = EXCLUDED.page_number,
	bbox = EXCLUDED.bbox,
	metadata = EXCLUDED.metadata
`,
		chunk.ID, userID, chunk.DocumentID, chunk.DocumentTitle, chunk.Content,
		chunk.ChunkIndex, chunk.ElementType, nullableInt(chunk.PageNumber), bboxJSON, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO chunk_embeddings (chunk_id, user_id, embedding)
VALUES ($1,$2,$3::vector)
ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding
`, chunk.ID, userID, vectorLiteral(vector))
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// DeleteDocument removes the embeddings first, then the chunk rows, so
// a failure between the two never strands an embedding without its
// chunk.
func (x *Index) DeleteDocument(ctx context.Context, userID, documentID string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
DELETE FROM chunk_embeddings
WHERE user_id = $1 AND chunk_id IN (
	SELECT id FROM document_chunks WHERE user_id = $1 AND document_id = $2
)
`, userID, documentID)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM document_chunks
WHERE user_id = $1 AND document_id = $2
`, userID, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

func (x *Index) Ping(ctx context.Context) error {
	return x.db.PingContext(ctx)
}

// buildFilter renders the shared WHERE clause. userID is always $1;
// optional filters append further placeholders.
func buildFilter(userID string, filter domain.SearchFilter) (string, []any) {
	clauses := []string{"c.user_id = $1"}
	args := []any{userID}

	if len(filter.DocumentIDs) > 0 {
		args = append(args, textArray(filter.DocumentIDs))
		clauses = append(clauses, fmt.Sprintf("c.document_id = ANY($%d::text[])", len(args)))
	}
	if len(filter.ElementTypes) > 0 {
		args = append(args, textArray(filter.ElementTypes))
		clauses = append(clauses, fmt.Sprintf("c.element_type = ANY($%d::text[])", len(args)))
	}
	if len(filter.PageNumbers) > 0 {
		args = append(args, intArray(filter.PageNumbers))
		clauses = append(clauses, fmt.Sprintf("c.page_number = ANY($%d::int[])", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func scanResults(rows *sql.Rows) ([]domain.SearchResult, error) {
	var out []domain.SearchResult
	for rows.Next() {
		var (
			r           domain.SearchResult
			pageNumber  sql.NullInt64
			bboxRaw     []byte
			metadataRaw []byte
		)
		err := rows.Scan(
			&r.ID, &r.DocumentID, &r.DocumentTitle, &r.Content, &r.ChunkIndex,
			&r.ElementType, &pageNumber, &bboxRaw, &metadataRaw, &r.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		if pageNumber.Valid {
			r.PageNumber = int(pageNumber.Int64)
		}
		if len(bboxRaw) > 0 {
			var bbox domain.BoundingBox
			if err := json.Unmarshal(bboxRaw, &bbox); err != nil {
				return nil, fmt.Errorf("unmarshal bbox: %w", err)
			}
			r.BBox = &bbox
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// vectorLiteral renders the pgvector input form: [0.1,0.2,...].
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// textArray renders a Postgres text[] literal. Backslashes must be
// escaped before quotes or the escape characters themselves get
// re-escaped.
func textArray(values []string) string {
	escaped := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		escaped = append(escaped, `"`+v+`"`)
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

func intArray(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func marshalNullable(bbox *domain.BoundingBox) (any, error) {
	if bbox == nil {
		return nil, nil
	}
	raw, err := json.Marshal(bbox)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// nullableInt maps the zero page number to NULL; ingestion uses 0 for
// chunks without page provenance.
func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func orEmptyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
