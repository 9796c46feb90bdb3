package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coinsight/internal/domain/models"
	pkgch "coinsight/pkg/clickhouse"
	applogger "coinsight/pkg/logger"
)

const signalsTable = "coinsight.signals"

// SignalsSchema holds the idempotent DDL for the signal history table,
// passed to clickhouse.Client.InitSchema at startup.
var SignalsSchema = []string{
	`CREATE DATABASE IF NOT EXISTS coinsight`,
	`CREATE TABLE IF NOT EXISTS coinsight.signals (
        symbol             LowCardinality(String),
        exchange           LowCardinality(String),
        timeframe          LowCardinality(String),
        action             LowCardinality(String),
        confidence         Float64,
        strength           Float64,
        current_price      Float64,
        indicators         String,
        reasoning          String,
        processing_time_ms Int64,
        created_at         DateTime64(3, 'UTC')
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(created_at)
    ORDER BY (symbol, created_at)`,
}

// CHSignalStore implements SignalSink backed by ClickHouse. Writes are
// append-only; the table is never updated or deleted from.
type CHSignalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client, l *applogger.Logger) *CHSignalStore {
	return &CHSignalStore{db: ch.DB(), l: l.With("component", "signal_store")}
}

// Append writes one signal record.
func (s *CHSignalStore) Append(ctx context.Context, rec models.SignalRecord) error {
	start := time.Now()
	const q = `
        INSERT INTO ` + signalsTable + `
        (symbol, exchange, timeframe, action, confidence, strength,
         current_price, indicators, reasoning, processing_time_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.Symbol, rec.Exchange, rec.Timeframe, string(rec.Action),
		rec.Confidence, rec.Strength, rec.CurrentPrice,
		rec.IndicatorsJSON, strings.Join(rec.Reasoning, "\n"),
		rec.ProcessingTimeMs, createdAt,
	)
	if err != nil {
		s.l.Error("clickhouse signal insert error",
			applogger.String("symbol", rec.Symbol),
			applogger.String("timeframe", rec.Timeframe),
			applogger.Error(err),
		)
		return fmt.Errorf("append signal: %w", err)
	}
	s.l.Debug("clickhouse signal insert ok",
		applogger.String("symbol", rec.Symbol),
		applogger.String("timeframe", rec.Timeframe),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Recent returns the latest signals for a symbol in reverse
// chronological order.
func (s *CHSignalStore) Recent(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT symbol, exchange, timeframe, action, confidence, strength,
               current_price, indicators, reasoning, processing_time_ms, created_at
        FROM ` + signalsTable + `
        WHERE symbol = ?
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		s.l.Error("clickhouse recent signals query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalRecord, 0, limit)
	for rows.Next() {
		var rec models.SignalRecord
		var action, reasoning string
		if err := rows.Scan(&rec.Symbol, &rec.Exchange, &rec.Timeframe, &action,
			&rec.Confidence, &rec.Strength, &rec.CurrentPrice,
			&rec.IndicatorsJSON, &reasoning, &rec.ProcessingTimeMs, &rec.CreatedAt); err != nil {
			s.l.Error("clickhouse recent signals scan error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		rec.Action = models.Action(action)
		if reasoning != "" {
			rec.Reasoning = strings.Split(reasoning, "\n")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse recent signals ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
