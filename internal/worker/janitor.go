package worker

import (
	"context"
	"sync"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
)

// Pruner deletes expired rows and reports how many went.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Janitor runs every registered pruner on a fixed interval: expired product
// snapshots and event log entries past retention.
type Janitor struct {
	interval time.Duration
	clock    clock.Clock
	logger   *logger.Logger
	pruners  map[string]Pruner

	mu    sync.Mutex
	timer clock.Timer
}

func NewJanitor(interval time.Duration, clk clock.Clock, logger *logger.Logger) *Janitor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Janitor{
		interval: interval,
		clock:    clk,
		logger:   logger,
		pruners:  map[string]Pruner{},
	}
}

func (j *Janitor) Register(name string, p Pruner) {
	j.pruners[name] = p
}

// Sweep runs every pruner once. One failing pruner does not stop the others.
func (j *Janitor) Sweep(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(j.pruners))
	for name, p := range j.pruners {
		n, err := p.Prune(ctx)
		if err != nil {
			j.logger.Error("Prune %s failed: %v", name, err)
			continue
		}
		removed[name] = n
		if n > 0 {
			j.logger.Info("Pruned %d rows from %s", n, name)
		}
	}
	return removed
}

// Start sweeps immediately and then once per interval until Stop.
func (j *Janitor) Start() {
	j.Sweep(context.Background())
	j.mu.Lock()
	defer j.mu.Unlock()
	j.timer = j.clock.AfterFunc(j.interval, j.tick)
}

func (j *Janitor) tick() {
	j.mu.Lock()
	if j.timer == nil {
		j.mu.Unlock()
		return
	}
	j.mu.Unlock()

	j.Sweep(context.Background())

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer != nil {
		j.timer = j.clock.AfterFunc(j.interval, j.tick)
	}
}

func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
}
