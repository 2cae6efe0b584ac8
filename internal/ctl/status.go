package ctl

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/mediaflow/internal/ctl/output"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
)

// assetView is the JSON shape of an asset.
type assetView struct {
	S3Key         string            `json:"s3Key"`
	UploadType    string            `json:"uploadType"`
	Status        string            `json:"status"`
	UserID        string            `json:"userId,omitempty"`
	OwnerID       string            `json:"ownerId,omitempty"`
	ProcessedURLs map[string]string `json:"processedUrls"`
	Error         string            `json:"error,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func viewOf(a db.MediaAsset) assetView {
	urls := a.ProcessedUrls
	if urls == nil {
		urls = map[string]string{}
	}
	return assetView{
		S3Key:         a.S3Key,
		UploadType:    a.UploadType,
		Status:        string(a.Status),
		UserID:        a.UserID.String,
		OwnerID:       a.ParentEntityID.String,
		ProcessedURLs: urls,
		Error:         a.ErrorMessage.String,
		UpdatedAt:     a.UpdatedAt.Time,
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <s3-key>",
		Short: "Show the processing state of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := a.backend.Store.GetMediaAssetByS3Key(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, db.ErrAssetNotFound) {
					return fmt.Errorf("no asset for key %q", args[0])
				}
				return fmt.Errorf("get asset: %w", err)
			}

			v := viewOf(asset)
			if a.printer.IsJSON() {
				return a.printer.JSON(v)
			}

			a.printer.Header(v.S3Key)
			a.printer.KeyValue("Type", v.UploadType)
			a.printer.KeyValue("Status", output.Status(v.Status))
			if v.OwnerID != "" {
				a.printer.KeyValue("Owner", v.OwnerID)
			}
			if !v.UpdatedAt.IsZero() {
				a.printer.KeyValue("Updated", v.UpdatedAt.Format(time.RFC3339))
			}
			if v.Error != "" {
				a.printer.KeyValue("Error", v.Error)
			}
			if len(v.ProcessedURLs) > 0 {
				a.printer.KeyValue("Processed", "")
				names := make([]string, 0, len(v.ProcessedURLs))
				for name := range v.ProcessedURLs {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					a.printer.Indent("%s: %s", name, v.ProcessedURLs[name])
				}
			}
			return nil
		},
	}
}
