package policysync

import (
	"context"
	"log"
	"time"
)

// RefillInterval is the rolling quota window length named throughout the
// spec's Quick Task sections ("remaining resets every 15 minutes").
const RefillInterval = 15 * time.Minute

// LiveQuota is the setter surface policysync drives on the elected leader;
// store.QuotaStore satisfies it.
type LiveQuota interface {
	SetMax(max int)
	Refill()
}

// Service ties leader election to the durable store and the periodic
// refill that only the current leader performs.
type Service struct {
	elector    *Elector
	durable    *DurableStore
	defaultMax int

	cancel context.CancelFunc
}

// NewService wires an Elector to a DurableStore.
func NewService(elector *Elector, durable *DurableStore, defaultMax int) *Service {
	return &Service{elector: elector, durable: durable, defaultMax: defaultMax}
}

// Run starts leader election and, while leader, ticks the refill loop every
// RefillInterval. live, if non-nil, is kept in sync with the durable refill
// (used when the service runs in the same process as the Coordinator).
// Blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context, live LiveQuota) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	var loopCancel context.CancelFunc
	s.elector.SetCallbacks(
		func(leaderCtx context.Context) {
			lc, lcancel := context.WithCancel(leaderCtx)
			loopCancel = lcancel
			go s.refillLoop(lc, live)
		},
		func() {
			if loopCancel != nil {
				loopCancel()
			}
		},
	)

	s.elector.Start(ctx)
	<-ctx.Done()
	s.elector.Stop()
}

// Stop cancels the service's context if Run is in progress.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) refillLoop(ctx context.Context, live LiveQuota) {
	w, err := s.durable.LoadWindow(ctx, s.defaultMax)
	if err != nil {
		log.Printf("policysync: load window failed: %v", err)
	} else if live != nil {
		live.SetMax(w.MaxPer15m)
	}

	due := RefillInterval
	if err == nil {
		if elapsed := time.Since(w.WindowStart); elapsed < RefillInterval {
			due = RefillInterval - elapsed
		} else {
			due = 0
		}
	}

	timer := time.NewTimer(due)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w, err := s.durable.Refill(ctx, s.defaultMax)
			if err != nil {
				log.Printf("policysync: refill failed: %v", err)
				timer.Reset(time.Minute)
				continue
			}
			if live != nil {
				live.Refill()
			}
			log.Printf("policysync: refilled quota window, remaining=%d window_start=%s", w.Remaining, w.WindowStart)
			timer.Reset(RefillInterval)
		}
	}
}
