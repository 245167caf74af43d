package similar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glassboxhq/glassbox/internal/common"
	"github.com/glassboxhq/glassbox/internal/entity"
)

// queryTextLimit caps how much of a document feeds the query
// embedding.
const queryTextLimit = 8000

// PGStore is a pgvector-backed similarity store.
type PGStore struct {
	pool  *pgxpool.Pool
	embed *embedClient
	log   *slog.Logger
}

// NewPGStore connects to the database and verifies it is reachable.
func NewPGStore(ctx context.Context, cfg common.SimilarityConfig, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("similarity store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("similarity store ping: %w", err)
	}
	return &PGStore{
		pool:  pool,
		embed: newEmbedClient(cfg.EmbedEndpoint, cfg.EmbedKeyEnv),
		log:   logger,
	}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// Similar embeds the query text and runs a cosine-distance search.
func (s *PGStore) Similar(ctx context.Context, text string, limit int) ([]entity.SimilarDocument, error) {
	if limit <= 0 {
		limit = 5
	}
	if len(text) > queryTextLimit {
		text = text[:queryTextLimit]
	}
	vec, err := s.embed.Embed(ctx, text, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT document_id, summary, 1 - (embedding <=> $1::vector) AS score
		FROM document_index
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, formatVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var out []entity.SimilarDocument
	for rows.Next() {
		var d entity.SimilarDocument
		if err := rows.Scan(&d.DocumentID, &d.Summary, &d.Score); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.log.Debug("similar.query.done", "matches", len(out))
	return out, nil
}

// Add indexes a processed document.
func (s *PGStore) Add(ctx context.Context, documentID, summary, text string) error {
	if len(text) > queryTextLimit {
		text = text[:queryTextLimit]
	}
	vec, err := s.embed.Embed(ctx, text, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_index (document_id, summary, embedding)
		VALUES ($1, $2, $3::vector)
		ON CONFLICT (document_id) DO UPDATE
		SET summary = EXCLUDED.summary, embedding = EXCLUDED.embedding`,
		documentID, summary, formatVector(vec))
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}

// formatVector renders an embedding in pgvector's text syntax.
func formatVector(vec []float64) string {
	if len(vec) == 0 {
		return "[]"
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
