package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type MediaStatus string

const (
	MediaStatusUploading  MediaStatus = "uploading"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
)

func (s MediaStatus) Valid() bool {
	switch s {
	case MediaStatusUploading, MediaStatusProcessing, MediaStatusCompleted, MediaStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends a processing attempt.
func (s MediaStatus) Terminal() bool {
	return s == MediaStatusCompleted || s == MediaStatusFailed
}

type MediaAsset struct {
	ID             pgtype.UUID        `json:"id"`
	S3Key          string             `json:"s3_key"`
	UploadType     string             `json:"upload_type"`
	UserID         pgtype.Text        `json:"user_id"`
	ParentEntityID pgtype.Text        `json:"parent_entity_id"`
	Status         MediaStatus        `json:"status"`
	ProcessedUrls  map[string]string  `json:"processed_urls"`
	ErrorMessage   pgtype.Text        `json:"error_message"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

// Text converts an optional string into a nullable column value.
func Text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
