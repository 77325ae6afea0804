package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

const createMetricsTable = `CREATE TABLE IF NOT EXISTS game_metrics (
    game_id           TEXT PRIMARY KEY,
    source            TEXT NOT NULL DEFAULT '',
    white_name        TEXT NOT NULL DEFAULT '',
    black_name        TEXT NOT NULL DEFAULT '',
    event             TEXT NOT NULL DEFAULT '',
    site              TEXT NOT NULL DEFAULT '',
    round             TEXT NOT NULL DEFAULT '',
    game_date         TEXT NOT NULL DEFAULT '',
    white_elo         INTEGER,
    black_elo         INTEGER,
    result            TEXT NOT NULL DEFAULT '*',
    white_result      DOUBLE PRECISION,
    black_result      DOUBLE PRECISION,
    white_gi          DOUBLE PRECISION NOT NULL,
    black_gi          DOUBLE PRECISION NOT NULL,
    white_gpl         DOUBLE PRECISION NOT NULL,
    black_gpl         DOUBLE PRECISION NOT NULL,
    white_acpl        DOUBLE PRECISION NOT NULL,
    black_acpl        DOUBLE PRECISION NOT NULL,
    white_move_number INTEGER NOT NULL,
    black_move_number INTEGER NOT NULL,
    diagnostics       JSONB NOT NULL DEFAULT '[]',
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertMetrics = `INSERT INTO game_metrics (
    game_id, source, white_name, black_name, event, site, round, game_date,
    white_elo, black_elo, result, white_result, black_result,
    white_gi, black_gi, white_gpl, black_gpl, white_acpl, black_acpl,
    white_move_number, black_move_number, diagnostics, updated_at
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,now()
  ) ON CONFLICT (game_id) DO UPDATE SET
    source=EXCLUDED.source,
    white_name=EXCLUDED.white_name,
    black_name=EXCLUDED.black_name,
    event=EXCLUDED.event,
    site=EXCLUDED.site,
    round=EXCLUDED.round,
    game_date=EXCLUDED.game_date,
    white_elo=EXCLUDED.white_elo,
    black_elo=EXCLUDED.black_elo,
    result=EXCLUDED.result,
    white_result=EXCLUDED.white_result,
    black_result=EXCLUDED.black_result,
    white_gi=EXCLUDED.white_gi,
    black_gi=EXCLUDED.black_gi,
    white_gpl=EXCLUDED.white_gpl,
    black_gpl=EXCLUDED.black_gpl,
    white_acpl=EXCLUDED.white_acpl,
    black_acpl=EXCLUDED.black_acpl,
    white_move_number=EXCLUDED.white_move_number,
    black_move_number=EXCLUDED.black_move_number,
    diagnostics=EXCLUDED.diagnostics,
    updated_at=now()`

// Postgres upserts records into the game_metrics table keyed by game id.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, createMetricsTable)
	return err
}

func (p *Postgres) Write(ctx context.Context, m *metricsdto.GameMetrics) error {
	if p == nil || p.db == nil || m == nil {
		return nil
	}
	_, err := p.db.ExecContext(ctx, upsertMetrics, upsertArgs(m)...)
	return err
}

func upsertArgs(m *metricsdto.GameMetrics) []any {
	diags := m.Diagnostics
	if diags == nil {
		diags = []string{}
	}
	diagsRaw, _ := json.Marshal(diags)
	return []any{
		m.GameID, m.Source,
		m.White, m.Black,
		m.Event, m.Site, m.Round, m.Date,
		nullInt(m.WhiteElo), nullInt(m.BlackElo),
		m.Result, nullFloat(m.WhiteResult), nullFloat(m.BlackResult),
		m.WhiteGI, m.BlackGI,
		m.WhiteGPL, m.BlackGPL,
		m.WhiteACPL, m.BlackACPL,
		m.WhiteMoveNumber, m.BlackMoveNumber,
		string(diagsRaw),
	}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
