// Package janitor runs the periodic state backup job.
package janitor

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"tagbot/internal/store"
	logx "tagbot/pkg/logx"
)

const DefaultSchedule = "0 3 * * *"

type Config struct {
	Enabled  bool
	Schedule string
	// Path is the backup destination file.
	Path string
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	store  *store.Store
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, st *store.Store, log logx.Logger) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		store:  st,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}
	if s.cfg.Path == "" {
		return fmt.Errorf("janitor: backup path not configured")
	}

	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(s.cfg.Schedule, s.backup); err != nil {
		return fmt.Errorf("janitor: schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.c = c
	s.log.Info("backup job scheduled", logx.String("schedule", s.cfg.Schedule), logx.String("path", s.cfg.Path))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func (s *Service) backup() {
	if err := s.store.Backup(s.cfg.Path); err != nil {
		s.log.Error("state backup failed", logx.String("path", s.cfg.Path), logx.Err(err))
		return
	}
	s.log.Info("state backed up", logx.String("path", s.cfg.Path))
}
