package ctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/mediaflow/internal/ctl/output"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
)

func (a *app) listCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets by status",
		Long: `List assets in one state, most recently updated first.

Examples:
  mediactl list --status failed
  mediactl list --status processing --limit 10 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := db.MediaStatus(status)
			if !s.Valid() {
				return fmt.Errorf("invalid status %q (uploading, processing, completed, failed)", status)
			}
			if limit < 1 {
				return fmt.Errorf("limit must be positive")
			}

			assets, err := a.backend.Store.ListMediaAssetsByStatus(cmd.Context(), db.ListMediaAssetsByStatusParams{
				Status: s,
				Limit:  int32(limit),
			})
			if err != nil {
				return fmt.Errorf("list assets: %w", err)
			}

			if a.printer.IsJSON() {
				views := make([]assetView, 0, len(assets))
				for _, asset := range assets {
					views = append(views, viewOf(asset))
				}
				return a.printer.JSON(views)
			}

			if len(assets) == 0 {
				a.printer.Info("No %s assets", status)
				return nil
			}

			table := output.NewTable(a.printer.Out(), []string{"S3 KEY", "TYPE", "STATUS", "UPDATED", "ERROR"}, a.printer.IsQuiet())
			table.SetMaxWidth(60)
			for _, asset := range assets {
				updated := ""
				if asset.UpdatedAt.Valid {
					updated = asset.UpdatedAt.Time.Format(time.DateTime)
				}
				table.Append([]string{asset.S3Key, asset.UploadType, string(asset.Status), updated, asset.ErrorMessage.String})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(db.MediaStatusFailed), "Asset status to list")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of assets")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count assets per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.backend.Store.CountMediaAssetsByStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("count assets: %w", err)
			}

			counts := make(map[string]int64, len(rows))
			for _, r := range rows {
				counts[string(r.Status)] = r.Count
			}
			if a.printer.IsJSON() {
				return a.printer.JSON(counts)
			}

			table := output.NewTable(a.printer.Out(), []string{"STATUS", "COUNT"}, a.printer.IsQuiet())
			for _, s := range []db.MediaStatus{db.MediaStatusUploading, db.MediaStatusProcessing, db.MediaStatusCompleted, db.MediaStatusFailed} {
				table.Append([]string{string(s), fmt.Sprint(counts[string(s)])})
			}
			table.Render()
			return nil
		},
	}
}
