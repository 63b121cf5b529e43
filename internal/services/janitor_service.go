package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/media"
)

type SweepReport struct {
	Removed int
	Failed  int
}

// JanitorService periodically removes staged artifacts older than the retention.
type JanitorService interface {
	Start() error
	Stop(ctx context.Context)
	RunOnce() SweepReport
}

type janitorService struct {
	dirs      []string
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	log       *logrus.Logger
	now       func() time.Time
}

func NewJanitorService(dirs []string, retention time.Duration, schedule string, l *logrus.Logger) JanitorService {
	if l == nil {
		l = logrus.New()
	}
	return &janitorService{
		dirs:      dirs,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
		log:       l,
		now:       time.Now,
	}
}

func (s *janitorService) Start() error {
	if s.retention <= 0 {
		s.log.Info("janitor disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithFields(logrus.Fields{"schedule": s.schedule, "retention": s.retention.String()}).Info("janitor started")
	return nil
}

// Stop waits for a running sweep, bounded by ctx.
func (s *janitorService) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *janitorService) RunOnce() SweepReport {
	var rep SweepReport
	now := s.now()
	for _, dir := range s.dirs {
		res := media.Sweep(dir, nil, s.retention, now)
		rep.Removed += len(res.Removed)
		rep.Failed += len(res.Failed)
		for p, err := range res.Failed {
			s.log.WithError(err).WithField("path", p).Warn("janitor could not remove file")
		}
	}
	if rep.Removed > 0 || rep.Failed > 0 {
		s.log.WithFields(logrus.Fields{"removed": rep.Removed, "failed": rep.Failed}).Info("janitor sweep")
	}
	return rep
}

// StagingDirs are the trees the janitor sweeps: every staging dir plus the
// per-job work dirs left by interrupted jobs.
func StagingDirs(outputDir, uploadDir, avatarDir, audioDir, workDir string) []string {
	return []string{outputDir, uploadDir, avatarDir, audioDir, filepath.Join(workDir, "jobs")}
}
