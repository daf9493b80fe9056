package syncengine

import (
	"time"

	"github.com/uplo-tech/threadgroup"
)

// MaintenanceInterval is how often the periodic maintenance task (§4.6.8)
// runs.
const MaintenanceInterval = 5 * time.Minute

// StartMaintenance launches the periodic maintenance loop as a
// threadgroup-managed goroutine, following the same threads.Add/threads.Done/
// threads.StopChan shutdown pattern the teacher's gateway module uses for
// its background loops. Call tg.Stop to shut it down.
func (e *Engine) StartMaintenance(tg *threadgroup.ThreadGroup) error {
	if err := tg.Add(); err != nil {
		return err
	}

	go func() {
		defer tg.Done()

		ticker := time.NewTicker(MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tg.StopChan():
				return
			case <-ticker.C:
				e.runMaintenance()
			}
		}
	}()

	return nil
}

// runMaintenance performs one maintenance sweep: abandoned sync locks and
// expired diff sessions. Both halves are independent and best-effort —
// a failure sweeping one must not prevent the other from running.
func (e *Engine) runMaintenance() {
	removed := e.locks.SweepAbandoned()
	if removed > 0 {
		e.logger.Warn().Int("released", removed).Msg("syncengine: released abandoned sync locks")
	}

	if _, err := e.store.PruneExpiredSessions(e.now()); err != nil {
		e.logger.Warn().Err(err).Msg("syncengine: failed to prune expired diff sessions")
	}
}
