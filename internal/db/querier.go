package db

import (
	"context"
)

type Querier interface {
	CountMediaAssetsByStatus(ctx context.Context) ([]CountMediaAssetsByStatusRow, error)
	FailStaleProcessing(ctx context.Context, arg FailStaleProcessingParams) ([]MediaAsset, error)
	GetMediaAssetByS3Key(ctx context.Context, s3Key string) (MediaAsset, error)
	ListMediaAssetsByStatus(ctx context.Context, arg ListMediaAssetsByStatusParams) ([]MediaAsset, error)
	MarkCompleted(ctx context.Context, arg MarkCompletedParams) (MediaAsset, error)
	MarkFailed(ctx context.Context, arg MarkFailedParams) (MediaAsset, error)
	MarkProcessing(ctx context.Context, arg MarkProcessingParams) (MediaAsset, error)
	UpsertUploading(ctx context.Context, arg UpsertUploadingParams) (MediaAsset, error)
}

var _ Querier = (*Queries)(nil)
