// Package bot wires the transport, store, roster, dispatch, and broadcast
// layers into the running application and routes inbound updates to the
// command handlers.
package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tagbot/internal/config"
	"tagbot/internal/dispatch"
	"tagbot/internal/health"
	"tagbot/internal/perm"
	"tagbot/internal/roster"
	rtsup "tagbot/internal/runtime/supervisor"
	"tagbot/internal/services/broadcast"
	"tagbot/internal/services/janitor"
	"tagbot/internal/store"
	"tagbot/internal/transport"
	teleadapter "tagbot/internal/transport/telegram/adapter"
	logx "tagbot/pkg/logx"
)

// taggingParams is the resolved (duration-parsed) form of config.TaggingConfig.
type taggingParams struct {
	BatchSize  int
	BatchDelay time.Duration
}

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store      *store.Store
	adapter    transport.Adapter
	perm       *perm.Gate
	roster     *roster.Engine
	dispatcher *dispatch.Dispatcher
	broadcast  *broadcast.Service
	health     *health.Service
	janitor    *janitor.Service

	tagMu    sync.Mutex
	tagging  taggingParams // guarded by tagMu (hot-reloadable)
	commands map[string]HandlerFunc

	sup     *rtsup.Supervisor
	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.GroupLog,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: config.ParseDuration(cfg.Storage.BusyTimeout, 5*time.Second),
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if token == "" {
		token = cfg.Telegram.Token
	}
	adapter, err := teleadapter.New(teleadapter.Config{
		Token:       token,
		PollTimeout: config.ParseDuration(cfg.Telegram.PollTimeout, config.DefaultPollTimeout),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}
	// The Telegram log sink needs an outbound path; it only exists now.
	logSvc.SetSender(adapter)

	tagging := taggingParams{
		BatchSize:  cfg.Tagging.BatchSize,
		BatchDelay: config.ParseDuration(cfg.Tagging.BatchDelay, config.DefaultBatchDelay),
	}
	if tagging.BatchSize <= 0 {
		tagging.BatchSize = config.DefaultBatchSize
	}

	probeEvery := cfg.Tagging.ProbeEvery
	if probeEvery <= 0 {
		probeEvery = config.DefaultProbeEvery
	}

	backupPath := cfg.Backup.Path
	if backupPath == "" && cfg.Storage.Path != "" {
		backupPath = cfg.Storage.Path + ".bak"
	}

	a := &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		store:   st,
		adapter: adapter,
		perm:    perm.NewGate(st),
		roster: roster.New(adapter, st, roster.Config{
			ProbeEvery: probeEvery,
			ProbePause: config.ParseDuration(cfg.Tagging.ProbePause, config.DefaultProbePause),
		}, log.With(logx.String("comp", "roster"))),
		dispatcher: dispatch.New(adapter, log.With(logx.String("comp", "dispatch"))),
		broadcast: broadcast.New(adapter, st,
			config.ParseDuration(cfg.Broadcast.Delay, config.DefaultBcastDelay),
			log.With(logx.String("comp", "broadcast"))),
		health: health.New(health.Config{
			Enabled: cfg.Health.Enabled,
			Addr:    cfg.Health.Addr,
		}, st, log.With(logx.String("comp", "health"))),
		janitor: janitor.New(janitor.Config{
			Enabled:  cfg.Backup.Enabled,
			Schedule: cfg.Backup.Schedule,
			Path:     backupPath,
		}, st, log.With(logx.String("comp", "janitor"))),
		tagging: tagging,
		updates: make(chan transport.Update, 256),
	}
	a.registerCommands()
	return a, nil
}

func (a *App) tagParams() taggingParams {
	a.tagMu.Lock()
	defer a.tagMu.Unlock()
	return a.tagging
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "app"))))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	// Worker pool: handlers block on rate-limited sends and probe sweeps,
	// so a single consumer would stall every other chat.
	for i := 0; i < routerWorkers; i++ {
		a.sup.Go0(fmt.Sprintf("router.worker.%d", i), func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case up := <-a.updates:
					a.route(c, up)
				}
			}
		})
	}

	a.health.Start()
	if err := a.janitor.Start(); err != nil {
		a.log.Warn("backup job not started", logx.Err(err))
	}

	if menu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		a.sup.Go0("menu.sync", func(c context.Context) {
			cctx, cancel := context.WithTimeout(c, 15*time.Second)
			defer cancel()
			if err := menu.UpdateMenuCommands(cctx, menuCommands()); err != nil {
				a.log.Warn("menu command sync failed", logx.Err(err))
			}
		})
	}

	a.sup.Go("config.watch", a.cfgMgr.Watch)
	a.sup.Go0("config.reload", func(c context.Context) {
		sub := a.cfgMgr.Subscribe(4)
		defer a.cfgMgr.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg := <-sub:
				if cfg == nil {
					continue
				}
				a.applyConfig(cfg)
			}
		}
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("bot started", logx.Int64("bot_id", a.adapter.Self().ID), logx.String("username", a.adapter.Self().Username))
	return nil
}

// applyConfig handles hot-reloadable settings. Token and storage driver
// changes require a restart and are ignored here.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.GroupLog,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})

	tagging := taggingParams{
		BatchSize:  cfg.Tagging.BatchSize,
		BatchDelay: config.ParseDuration(cfg.Tagging.BatchDelay, config.DefaultBatchDelay),
	}
	if tagging.BatchSize <= 0 {
		tagging.BatchSize = config.DefaultBatchSize
	}
	a.tagMu.Lock()
	a.tagging = tagging
	a.tagMu.Unlock()

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.janitor.Stop()
	a.health.Stop(ctx)

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("transport stop error", logx.Err(err))
	}

	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", logx.Err(err))
	}

	a.log.Info("bot stopped")
	return a.logSvc.Close()
}
