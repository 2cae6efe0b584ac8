package ctl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/mediaflow/internal/ctl/output"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/notification"
	"github.com/abdul-hamid-achik/mediaflow/internal/worker"
)

type redriveResult struct {
	S3Key string `json:"s3Key"`
	JobID string `json:"jobId,omitempty"`
	Error string `json:"error,omitempty"`
}

func (a *app) redriveCmd() *cobra.Command {
	var (
		failed   bool
		limit    int
		viaQueue bool
	)

	cmd := &cobra.Command{
		Use:   "redrive [s3-key...]",
		Short: "Schedule another processing attempt",
		Long: `Schedule assets for reprocessing.

By default each key becomes a media.redrive job on the worker's job queue.
With --via-queue a synthetic upload notification is sent to the ingest
queue instead, exercising the full parse path.

Examples:
  mediactl redrive lessons/L1/intro.mp4
  mediactl redrive --failed --limit 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keys := args

			if failed {
				assets, err := a.backend.Store.ListMediaAssetsByStatus(ctx, db.ListMediaAssetsByStatusParams{
					Status: db.MediaStatusFailed,
					Limit:  int32(limit),
				})
				if err != nil {
					return fmt.Errorf("list failed assets: %w", err)
				}
				for _, asset := range assets {
					keys = append(keys, asset.S3Key)
				}
			}
			if len(keys) == 0 {
				return errors.New("specify at least one key or --failed")
			}
			if viaQueue && a.backend.Queue == nil {
				return errors.New("--via-queue needs a queue connection")
			}
			if !viaQueue && a.backend.Enqueuer == nil {
				return errors.New("redrive needs a job queue connection")
			}

			progress := output.NewProgress(len(keys), "Redriving",
				output.ProgressWithQuiet(a.printer.IsQuiet() || a.printer.IsJSON()),
				output.ProgressWithOutput(cmd.ErrOrStderr()),
			)

			results := make([]redriveResult, 0, len(keys))
			var ok, bad int
			for _, key := range keys {
				res := redriveResult{S3Key: key}
				var err error
				if viaQueue {
					var body string
					body, err = notification.NewEvent(a.backend.RawBucket, key)
					if err == nil {
						err = a.backend.Queue.Send(ctx, body, nil)
					}
				} else {
					res.JobID, err = worker.EnqueueRedrive(ctx, a.backend.Enqueuer, a.backend.RawBucket, key)
				}

				if err != nil {
					res.Error = err.Error()
					a.printer.ItemFailed(key, err)
					bad++
				} else {
					ok++
				}
				results = append(results, res)
				progress.Increment()
			}
			progress.Finish()

			if a.printer.IsJSON() {
				if err := a.printer.JSON(results); err != nil {
					return err
				}
			} else {
				a.printer.Summary(ok, bad)
			}

			if bad > 0 {
				return fmt.Errorf("%d of %d redrives failed", bad, len(keys))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Redrive every failed asset")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum failed assets to redrive with --failed")
	cmd.Flags().BoolVar(&viaQueue, "via-queue", false, "Send a notification to the ingest queue instead of a job")
	return cmd
}
