package pool

import (
	"context"
	"time"

	"mediabridge/internal/bridge"
	"mediabridge/internal/logging"
	"mediabridge/internal/worker"
)

// revive respawns a dead worker with doubling backoff until it comes back,
// the attempt budget runs out, or the pool shuts down. An exhausted worker is
// permanently retired: pool capacity shrinks by one, which is a warning, not
// a pool failure, while any other worker remains ready.
func (p *Pool) revive(br *bridge.Bridge) {
	w := br.Worker()
	for w.Restarts() < p.cfg.MaxRestarts {
		attempt := w.Restarts() + 1
		backoff := p.cfg.RestartBackoff << (attempt - 1)
		select {
		case <-time.After(backoff):
		case <-p.closedCh:
			return
		}

		if err := w.Restart(context.Background(), p.cfg.HandshakeTimeout); err != nil {
			p.logger.Warn("worker restart failed",
				logging.Int("worker", w.ID()),
				logging.Int("attempt", attempt),
				logging.Int("budget", p.cfg.MaxRestarts),
				logging.Error(err))
			continue
		}

		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			w.MarkDead()
			return
		}
		p.idle <- br
		p.logger.Info("worker restarted",
			logging.Int("worker", w.ID()),
			logging.Int("attempt", attempt))
		return
	}

	p.mu.Lock()
	p.retired++
	retired := p.retired
	p.mu.Unlock()
	p.logger.Warn("worker permanently retired",
		logging.Int("worker", w.ID()),
		logging.Int("attempts", w.Restarts()),
		logging.Int("capacity", len(p.bridges)-retired))
}

// Status is a point-in-time view of the pool for health reporting.
type Status struct {
	Workers  []worker.Snapshot
	Ready    int
	Busy     int
	Dead     int
	Retired  int
	Capacity int
}

// Snapshot captures per-worker state and aggregate counts.
func (p *Pool) Snapshot() Status {
	p.mu.Lock()
	retired := p.retired
	p.mu.Unlock()

	status := Status{
		Retired:  retired,
		Capacity: len(p.bridges) - retired,
	}
	for _, br := range p.bridges {
		snap := br.Worker().Snapshot()
		status.Workers = append(status.Workers, snap)
		switch {
		case snap.State.Available():
			status.Ready++
		case snap.State == worker.StateBusy:
			status.Busy++
		case snap.State == worker.StateDead:
			status.Dead++
		}
	}
	return status
}
