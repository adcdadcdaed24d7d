package store

import (
	"context"
	"database/sql"
)

// UsageRepo хранит месячный счётчик OCR-вызовов, чтобы лимит переживал рестарты.
// Таблица ocr_usage(month_key text primary key, counter int, updated_at).
type UsageRepo struct{ DB *sql.DB }

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{DB: db} }

func (r *UsageRepo) Load(ctx context.Context, monthKey string) (int, error) {
	const q = `select counter from ocr_usage where month_key=$1`
	var n int
	if err := r.DB.QueryRowContext(ctx, q, monthKey).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *UsageRepo) Save(ctx context.Context, monthKey string, count int) error {
	const q = `
insert into ocr_usage (month_key, counter)
values ($1,$2)
on conflict (month_key) do update
set counter = excluded.counter, updated_at = now()`
	_, err := r.DB.ExecContext(ctx, q, monthKey, count)
	return err
}
