package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert persists one execution outcome.
func (s *ExecutionStore) Insert(ctx context.Context, res domain.ExecutionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (opportunity_id, asset, success, settlement_ref, reason, observed_profit, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.OpportunityID, res.Asset, res.Success, res.SettlementRef,
		res.Reason, res.ObservedProfit, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", res.OpportunityID, err)
	}
	return nil
}

// SummarizeDay aggregates all executions completed on the given UTC day.
func (s *ExecutionStore) SummarizeDay(ctx context.Context, day time.Time) (domain.DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var summary domain.DailySummary
	summary.Date = start.Format("2006-01-02")

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COALESCE(SUM(observed_profit) FILTER (WHERE success), 0)
		FROM executions
		WHERE completed_at >= $1 AND completed_at < $2`,
		start, end,
	).Scan(&summary.Executions, &summary.Successes, &summary.TotalProfit)
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("postgres: summarize day %s: %w", summary.Date, err)
	}

	if summary.Executions > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Executions)
	}

	return summary, nil
}

// ListRecent returns the most recent execution outcomes, newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT opportunity_id, asset, success, settlement_ref, reason, observed_profit, completed_at
		FROM executions ORDER BY completed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		var res domain.ExecutionResult
		if err := rows.Scan(&res.OpportunityID, &res.Asset, &res.Success,
			&res.SettlementRef, &res.Reason, &res.ObservedProfit, &res.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

// ListDay returns every execution completed on the given UTC day, in
// completion order.
func (s *ExecutionStore) ListDay(ctx context.Context, day time.Time) ([]domain.ExecutionResult, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx, `
		SELECT opportunity_id, asset, success, settlement_ref, reason, observed_profit, completed_at
		FROM executions
		WHERE completed_at >= $1 AND completed_at < $2
		ORDER BY completed_at`, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list day %s: %w", start.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		var res domain.ExecutionResult
		if err := rows.Scan(&res.OpportunityID, &res.Asset, &res.Success,
			&res.SettlementRef, &res.Reason, &res.ObservedProfit, &res.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
