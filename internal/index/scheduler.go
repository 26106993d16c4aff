package index

import (
	"context"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/sublayer/sublayer/pkg/log"
)

// Scheduler rescans the local media root on a cron schedule. Overlapping
// runs collapse into one.
type Scheduler struct {
	store *Store
	root  func() string
	cron  *cron.Cron
	group singleflight.Group
}

// NewScheduler builds a scheduler; root is read at each run so a settings
// change applies at the next tick.
func NewScheduler(store *Store, root func() string) *Scheduler {
	return &Scheduler{
		store: store,
		root:  root,
		cron:  cron.New(),
	}
}

// Start registers the rescan at the cron spec and starts the ticker.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		_, _, _ = s.group.Do("rescan", func() (any, error) {
			return s.RescanNow(context.Background())
		})
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info("Subtitle index rescan scheduled: %s", spec)
	return nil
}

// RescanNow runs one rescan immediately.
func (s *Scheduler) RescanNow(ctx context.Context) (int, error) {
	root := s.root()
	if root == "" {
		log.Debug("Index rescan skipped, no local root configured")
		return 0, nil
	}
	return s.store.Rescan(ctx, root)
}

// Stop halts the ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
