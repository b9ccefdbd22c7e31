package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
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

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS query_logs (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	tier TEXT NOT NULL,
	routing_score INTEGER NOT NULL,
	tokens_input INTEGER NOT NULL,
	tokens_output INTEGER NOT NULL,
	latency_ms BIGINT NOT NULL,
	retrieval_latency_ms BIGINT NOT NULL,
	candidate_count INTEGER NOT NULL,
	mean_similarity DOUBLE PRECISION NOT NULL,
	evaluator_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
	cache_hit BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_logs_created_at ON query_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_logs_tier ON query_logs(tier);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Insert is idempotent on entry ID so redelivered queue messages do
// not duplicate rows.
func (r *QueryLogRepository) Insert(ctx context.Context, entry domain.QueryLogEntry) error {
	flagsJSON, err := json.Marshal(entry.EvaluatorFlags)
	if err != nil {
		return fmt.Errorf("marshal evaluator flags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_logs (
	id, question, tier, routing_score, tokens_input, tokens_output,
	latency_ms, retrieval_latency_ms, candidate_count, mean_similarity,
	evaluator_flags, cache_hit, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO NOTHING
`,
		entry.ID, entry.Question, string(entry.Tier), entry.RoutingScore,
		entry.TokensInput, entry.TokensOutput, entry.LatencyMs, entry.RetrievalLatencyMs,
		entry.CandidateCount, entry.MeanSimilarity, flagsJSON, entry.CacheHit, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
