package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/crdt"
	"github.com/vrwarp/versicle/internal/database/settings"
	"github.com/vrwarp/versicle/internal/database/updatelog"
	"github.com/vrwarp/versicle/internal/entities"
)

var Error = errs.Class("scheduler")

// Scheduler runs the periodic maintenance jobs: compacting the update log
// into checkpoints and pruning device registrations that have gone quiet.
type Scheduler struct {
	doc      *crdt.Document
	updates  *updatelog.Repository
	settings *settings.Repository
	cfg      config.Config

	cron       *cron.Cron
	mu         sync.RWMutex
	isRunning  bool
	entryIDs   []cron.EntryID
	cancelFunc context.CancelFunc
}

func New(doc *crdt.Document, updates *updatelog.Repository, settingsRepo *settings.Repository, cfg config.Config) *Scheduler {
	return &Scheduler{
		doc:      doc,
		updates:  updates,
		settings: settingsRepo,
		cfg:      cfg,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	id, err := s.cron.AddFunc(s.cfg.Checkpoint.Schedule, func() {
		if err := s.RunCheckpoint(); err != nil {
			log.WithError(err).Error("scheduled checkpoint failed")
		}
	})
	if err != nil {
		return Error.New("invalid checkpoint schedule %q: %v", s.cfg.Checkpoint.Schedule, err)
	}
	s.entryIDs = append(s.entryIDs, id)

	id, err = s.cron.AddFunc(s.cfg.Devices.PruneSchedule, func() {
		if err := s.RunDevicePrune(); err != nil {
			log.WithError(err).Error("scheduled device prune failed")
		}
	})
	if err != nil {
		return Error.New("invalid device prune schedule %q: %v", s.cfg.Devices.PruneSchedule, err)
	}
	s.entryIDs = append(s.entryIDs, id)

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.WithFields(log.Fields{
		"checkpoint_schedule": s.cfg.Checkpoint.Schedule,
		"prune_schedule":      s.cfg.Devices.PruneSchedule,
	}).Info("scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for running jobs to complete before returning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Info("scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scheduled job will fire.
func (s *Scheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	var next *time.Time
	for _, entry := range s.cron.Entries() {
		t := entry.Next
		if next == nil || t.Before(*next) {
			next = &t
		}
	}
	return next
}

// RunCheckpoint snapshots the document and compacts the update log behind
// it, keeping the configured number of historical checkpoints.
func (s *Scheduler) RunCheckpoint() error {
	payload, seq, err := s.doc.Snapshot()
	if err != nil {
		return Error.Wrap(err)
	}
	if seq == 0 {
		log.Debug("checkpoint skipped: update log is empty")
		return nil
	}

	if err := s.updates.Checkpoint(seq, payload, s.cfg.Checkpoint.Keep); err != nil {
		return Error.Wrap(err)
	}
	if err := s.settings.Set(entities.SettingKeyLastCheckpointAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return Error.Wrap(err)
	}

	log.WithFields(log.Fields{
		"seq":   seq,
		"bytes": len(payload),
	}).Info("checkpoint written")
	return nil
}

// RunDevicePrune drops registry entries whose last announcement is older
// than the configured horizon. The local device is always kept.
func (s *Scheduler) RunDevicePrune() error {
	cutoff := time.Now().Add(-s.cfg.Devices.PruneHorizon).UnixMilli()

	var stale []string
	err := s.doc.List(crdt.CollectionDevices, func(id string, raw json.RawMessage) error {
		var dev entities.Device
		if err := json.Unmarshal(raw, &dev); err != nil {
			return err
		}
		if id != s.doc.Actor() && dev.LastSeen < cutoff {
			stale = append(stale, id)
		}
		return nil
	})
	if err != nil {
		return Error.Wrap(err)
	}

	for _, id := range stale {
		if err := s.doc.Delete(crdt.CollectionDevices, id); err != nil {
			return Error.Wrap(err)
		}
		log.WithField("device", id).Info("pruned stale device registration")
	}
	return nil
}
