package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/mediaflow/internal/lock"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
)

// Dispatcher runs one resolved object through its strategy. The poll loop
// and the redrive handler share it.
type Dispatcher struct {
	Registry *processor.Registry
	Locker   lock.Locker
}

func NewDispatcher(registry *processor.Registry, locker lock.Locker) *Dispatcher {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Dispatcher{Registry: registry, Locker: locker}
}

// Dispatch selects the strategy for pc and runs it while holding the key
// lock. It returns processor.ErrNoProcessor when nothing claims the upload
// and lock.ErrHeld when another worker is on the same key.
func (d *Dispatcher) Dispatch(ctx context.Context, pc *processor.Context) error {
	log := logger.FromContext(ctx)

	strategy, err := d.Registry.Select(pc.Metadata)
	if err != nil {
		return err
	}

	release, err := d.Locker.Acquire(ctx, pc.Key)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			log.Warn("failed to release key lock", "error", err)
		}
	}()

	uploadType := strategy.UploadType().String()
	log.Info("dispatching", "upload_type", uploadType, "bucket", pc.Bucket)
	if err := strategy.Process(ctx, pc); err != nil {
		return fmt.Errorf("%s: %w", uploadType, err)
	}
	return nil
}

func isLockHeld(err error) bool {
	return errors.Is(err, lock.ErrHeld)
}
