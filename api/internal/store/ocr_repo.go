package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// OCRRepo кэширует распознанный текст по хэшу изображения, чтобы повторно
// присланное фото не жгло квоту провайдера.
// Таблица ocr_cache(chat_id, image_hash, engine, model, ocr_text, created_at),
// PK (image_hash, engine, model).
type OCRRepo struct{ DB *sql.DB }

func NewOCRRepo(db *sql.DB) *OCRRepo { return &OCRRepo{DB: db} }

// FindByHash достаёт кэш по (image_hash, engine, model).
// Если maxAge > 0 и запись старше — ErrNotFound, чтобы распознать заново.
func (r *OCRRepo) FindByHash(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (string, error) {
	const q = `select ocr_text, created_at
	           from ocr_cache
	           where image_hash=$1 and engine=$2 and model=$3`
	var (
		text string
		ts   time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, imageHash, engine, model).Scan(&text, &ts); err != nil {
		return "", err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return "", ErrNotFound
	}
	return text, nil
}

// Upsert сохраняет/обновляет распознанный текст.
func (r *OCRRepo) Upsert(ctx context.Context, chatID int64, imageHash, engine, model, text string) error {
	const q = `
insert into ocr_cache (chat_id, image_hash, engine, model, ocr_text)
values ($1,$2,$3,$4,$5)
on conflict (image_hash, engine, model) do update
set chat_id = excluded.chat_id,
    ocr_text = excluded.ocr_text,
    created_at = now()`
	_, err := r.DB.ExecContext(ctx, q, chatID, imageHash, engine, model, text)
	return err
}

// PurgeOlderThan удаляет очень старые записи-кэши, чтобы не раздувать БД.
func (r *OCRRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from ocr_cache where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
