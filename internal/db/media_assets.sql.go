package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrAssetNotFound      = errors.New("db: media asset not found")
	ErrEmptyProcessedURLs = errors.New("db: completed asset needs at least one processed url")
)

const unknownErrorMessage = "unknown error"

const mediaAssetColumns = `id, s3_key, upload_type, user_id, parent_entity_id, status, processed_urls, error_message, created_at, updated_at`

func scanMediaAsset(row pgx.Row) (MediaAsset, error) {
	var i MediaAsset
	err := row.Scan(
		&i.ID,
		&i.S3Key,
		&i.UploadType,
		&i.UserID,
		&i.ParentEntityID,
		&i.Status,
		&i.ProcessedUrls,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return i, ErrAssetNotFound
	}
	return i, err
}

func collectMediaAssets(rows pgx.Rows) ([]MediaAsset, error) {
	defer rows.Close()
	var items []MediaAsset
	for rows.Next() {
		i, err := scanMediaAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countMediaAssetsByStatus = `-- name: CountMediaAssetsByStatus :many
SELECT status, COUNT(*) AS count
FROM media_assets
GROUP BY status
ORDER BY status
`

type CountMediaAssetsByStatusRow struct {
	Status MediaStatus `json:"status"`
	Count  int64       `json:"count"`
}

func (q *Queries) CountMediaAssetsByStatus(ctx context.Context) ([]CountMediaAssetsByStatusRow, error) {
	rows, err := q.db.Query(ctx, countMediaAssetsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountMediaAssetsByStatusRow
	for rows.Next() {
		var i CountMediaAssetsByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const failStaleProcessing = `-- name: FailStaleProcessing :many
UPDATE media_assets
SET status = 'failed', error_message = $2, processed_urls = '{}'::jsonb, updated_at = now()
WHERE status = 'processing' AND updated_at < $1
RETURNING ` + mediaAssetColumns

type FailStaleProcessingParams struct {
	UpdatedBefore pgtype.Timestamptz `json:"updated_before"`
	ErrorMessage  string             `json:"error_message"`
}

func (q *Queries) FailStaleProcessing(ctx context.Context, arg FailStaleProcessingParams) ([]MediaAsset, error) {
	if arg.ErrorMessage == "" {
		arg.ErrorMessage = unknownErrorMessage
	}
	rows, err := q.db.Query(ctx, failStaleProcessing, arg.UpdatedBefore, arg.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return collectMediaAssets(rows)
}

const getMediaAssetByS3Key = `-- name: GetMediaAssetByS3Key :one
SELECT ` + mediaAssetColumns + `
FROM media_assets
WHERE s3_key = $1
`

func (q *Queries) GetMediaAssetByS3Key(ctx context.Context, s3Key string) (MediaAsset, error) {
	row := q.db.QueryRow(ctx, getMediaAssetByS3Key, s3Key)
	return scanMediaAsset(row)
}

const listMediaAssetsByStatus = `-- name: ListMediaAssetsByStatus :many
SELECT ` + mediaAssetColumns + `
FROM media_assets
WHERE status = $1
ORDER BY updated_at DESC
LIMIT $2
`

type ListMediaAssetsByStatusParams struct {
	Status MediaStatus `json:"status"`
	Limit  int32       `json:"limit"`
}

func (q *Queries) ListMediaAssetsByStatus(ctx context.Context, arg ListMediaAssetsByStatusParams) ([]MediaAsset, error) {
	rows, err := q.db.Query(ctx, listMediaAssetsByStatus, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectMediaAssets(rows)
}

const markCompleted = `-- name: MarkCompleted :one
UPDATE media_assets
SET status = 'completed', processed_urls = $2, error_message = NULL, updated_at = now()
WHERE s3_key = $1
RETURNING ` + mediaAssetColumns

type MarkCompletedParams struct {
	S3Key         string            `json:"s3_key"`
	ProcessedUrls map[string]string `json:"processed_urls"`
}

func (q *Queries) MarkCompleted(ctx context.Context, arg MarkCompletedParams) (MediaAsset, error) {
	if len(arg.ProcessedUrls) == 0 {
		return MediaAsset{}, ErrEmptyProcessedURLs
	}
	row := q.db.QueryRow(ctx, markCompleted, arg.S3Key, arg.ProcessedUrls)
	return scanMediaAsset(row)
}

const markFailed = `-- name: MarkFailed :one
UPDATE media_assets
SET status = 'failed', error_message = $2, processed_urls = '{}'::jsonb, updated_at = now()
WHERE s3_key = $1
RETURNING ` + mediaAssetColumns

type MarkFailedParams struct {
	S3Key        string `json:"s3_key"`
	ErrorMessage string `json:"error_message"`
}

func (q *Queries) MarkFailed(ctx context.Context, arg MarkFailedParams) (MediaAsset, error) {
	if arg.ErrorMessage == "" {
		arg.ErrorMessage = unknownErrorMessage
	}
	row := q.db.QueryRow(ctx, markFailed, arg.S3Key, arg.ErrorMessage)
	return scanMediaAsset(row)
}

const markProcessing = `-- name: MarkProcessing :one
INSERT INTO media_assets (s3_key, upload_type, user_id, parent_entity_id, status)
VALUES ($1, $2, $3, $4, 'processing')
ON CONFLICT (s3_key) DO UPDATE
SET status = 'processing',
    processed_urls = '{}'::jsonb,
    error_message = NULL,
    upload_type = EXCLUDED.upload_type,
    user_id = COALESCE(EXCLUDED.user_id, media_assets.user_id),
    parent_entity_id = COALESCE(EXCLUDED.parent_entity_id, media_assets.parent_entity_id),
    updated_at = now()
RETURNING ` + mediaAssetColumns

type MarkProcessingParams struct {
	S3Key          string      `json:"s3_key"`
	UploadType     string      `json:"upload_type"`
	UserID         pgtype.Text `json:"user_id"`
	ParentEntityID pgtype.Text `json:"parent_entity_id"`
}

func (q *Queries) MarkProcessing(ctx context.Context, arg MarkProcessingParams) (MediaAsset, error) {
	row := q.db.QueryRow(ctx, markProcessing,
		arg.S3Key,
		arg.UploadType,
		arg.UserID,
		arg.ParentEntityID,
	)
	return scanMediaAsset(row)
}

const upsertUploading = `-- name: UpsertUploading :one
INSERT INTO media_assets (s3_key, upload_type, user_id, parent_entity_id, status)
VALUES ($1, $2, $3, $4, 'uploading')
ON CONFLICT (s3_key) DO UPDATE
SET upload_type = EXCLUDED.upload_type,
    user_id = EXCLUDED.user_id,
    parent_entity_id = EXCLUDED.parent_entity_id,
    updated_at = now()
RETURNING ` + mediaAssetColumns

type UpsertUploadingParams struct {
	S3Key          string      `json:"s3_key"`
	UploadType     string      `json:"upload_type"`
	UserID         pgtype.Text `json:"user_id"`
	ParentEntityID pgtype.Text `json:"parent_entity_id"`
}

func (q *Queries) UpsertUploading(ctx context.Context, arg UpsertUploadingParams) (MediaAsset, error) {
	row := q.db.QueryRow(ctx, upsertUploading,
		arg.S3Key,
		arg.UploadType,
		arg.UserID,
		arg.ParentEntityID,
	)
	return scanMediaAsset(row)
}
