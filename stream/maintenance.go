package stream

import (
	"context"

	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// SubmitMaintenance asks the device, through s, to report the progress of
// target, and then recycles the tasks target has executed. With force, all
// tasks of target are recycled whether executed or not, which is only safe
// once target can no longer run.
func (s *Stream) SubmitMaintenance(
	ctx context.Context,
	target *Stream,
	force bool,
) error {
	if s.bound {
		return rterr.New(rterr.ErrStreamInvalid, pkgName, "maintenance", nil)
	}

	_, err := s.Submit(ctx, task.Maintenance{
		TargetStreamID: target.id,
		Force:          force,
	}, WithSync(Infinite))
	if err != nil {
		return err
	}

	target.syncLock.Lock()
	defer target.syncLock.Unlock()

	if !force {
		return target.reclaimLocked(ctx)
	}

	n := target.ring.Reclaim(target.ring.Tail(), target.release)
	target.flushArgs()

	target.logger.Debug().Int("released", n).Msg("forced maintenance")

	return nil
}
