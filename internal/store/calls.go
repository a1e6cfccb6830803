// Package store keeps a ledger of provider invocations: who was called, how
// long it took, and whether it failed. Questions and answers are never stored.
package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/telemetry"
)

type CallStore struct {
	db *sqlx.DB
}

func NewCallStore(db *sqlx.DB) *CallStore { return &CallStore{db: db} }

// Record implements dispatch.Recorder. Write failures are logged, not returned:
// the ledger must never turn a provider answer into an error.
func (s *CallStore) Record(ctx context.Context, r providers.Result) {
	var kind sql.NullString
	if !r.OK() {
		kind = sql.NullString{String: string(r.Err.Kind), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO provider_calls(provider,model,ok,error_kind,latency_ms,created_at)
		VALUES(?,?,?,?,?,NOW())`,
		string(r.Provider), r.Model, r.OK(), kind, r.LatencyMs)
	if err != nil {
		log := telemetry.Provider(string(r.Provider))
		log.Warn().Err(err).Msg("call_record_failed")
	}
}

type ProviderStats struct {
	Provider     string  `db:"provider" json:"provider"`
	Calls        int64   `db:"calls" json:"calls"`
	Failures     int64   `db:"failures" json:"failures"`
	AvgLatencyMs float64 `db:"avg_latency_ms" json:"avg_latency_ms"`
}

func (s *CallStore) Summary(ctx context.Context) ([]ProviderStats, error) {
	var rows []ProviderStats
	err := s.db.SelectContext(ctx, &rows, `
		SELECT provider,
		       COUNT(*) AS calls,
		       COALESCE(SUM(ok = 0), 0) AS failures,
		       COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
		FROM provider_calls
		GROUP BY provider
		ORDER BY provider`)
	return rows, err
}
