package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/database"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/llm"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/meta"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/storage"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/valkey"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/application"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/repository"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/metrics"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/msgdedupe"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/msgworker"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/utils"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/ui/rest"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// services holds everything the rest command starts and later stops.
type services struct {
	metrics   *metrics.Metrics
	serverID  string
	db        *gorm.DB
	valkey    *valkey.Client
	monitor   *valkey.Monitor
	sessions  *repository.FallbackSessionStore
	dedupe    *msgdedupe.Set
	files     *storage.Local
	breaker   *llm.Breaker
	turnPool  *msgworker.Pool
	aiPool    *msgworker.Pool
	processor *application.Processor
}

// parserUnavailable fails every parse so free-form sessions fall back to the
// revert path when no AI provider is configured.
type parserUnavailable struct{ err error }

func (p parserUnavailable) Parse(context.Context, string, []string) (application.ParseResult, error) {
	return application.ParseResult{}, p.err
}

func initServices(ctx context.Context, cfg *config.Config) (*services, error) {
	s := &services{metrics: metrics.New()}
	s.serverID = utils.InstanceID(cfg.App.ServerID, cfg.Paths.Storages)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	s.db = db

	complaints := repository.NewComplaintGormRepository(db, cfg.Conversation.OfficeCode)
	if err := complaints.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate complaint schema: %w", err)
	}

	conv := cfg.Conversation
	memSessions := repository.NewMemorySessionStore()
	memLocker := repository.NewMemoryLocker(conv.LockMaxWait)
	memLimiter := repository.NewMemoryRateLimiter(conv.RateLimitMax, conv.RateLimitWindow)
	go memSessions.Run(ctx, time.Minute)
	go memLimiter.Run(ctx)

	var (
		locker  session.Locker      = memLocker
		limiter session.RateLimiter = memLimiter
	)
	s.sessions = repository.NewFallbackSessionStore(nil, nil, memSessions, conv.SessionTTL)

	if cfg.Database.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.ConfigFrom(cfg.Database))
		if err != nil {
			logrus.WithError(err).Warn("[VALKEY] Unavailable at startup, running on in-memory state")
		} else {
			s.valkey = client
			s.monitor = valkey.NewMonitor(client, 5*time.Second)
			s.monitor.OnChange(func(healthy bool) { s.metrics.SetStoreDegraded(!healthy) })
			go s.monitor.Run(ctx)

			s.sessions = repository.NewFallbackSessionStore(repository.NewValkeySessionStore(client), s.monitor, memSessions, conv.SessionTTL)
			locker = repository.NewFallbackLocker(repository.NewValkeyLocker(client, s.monitor, conv.LockTTL, conv.LockMaxWait), s.monitor, memLocker)
			limiter = repository.NewValkeyRateLimiter(client, s.monitor, memLimiter, conv.RateLimitMax, conv.RateLimitWindow)
			logrus.WithField("address", cfg.Database.ValkeyAddress).Info("[VALKEY] Session state shared through valkey")
		}
	}

	metaClient := meta.NewClient(cfg.Meta)
	if !metaClient.Configured() {
		logrus.Warn("[META] META_ACCESS_TOKEN or META_PHONE_NUMBER_ID missing, replies will not be delivered")
	}

	s.files = storage.NewLocal(cfg.Storage)
	if !s.files.Configured() {
		logrus.Warn("[STORAGE] Attachment storage not configured, media will be refused")
	}

	var parser application.Parser
	if breaker, err := llm.New(ctx, cfg.AI); err != nil {
		logrus.WithError(err).Warn("[LLM] AI provider unavailable, free-form parsing is disabled")
		parser = parserUnavailable{err: err}
	} else {
		s.breaker = breaker
		parser = application.NewAIParseService(breaker, cfg.AI)
	}

	machine := application.NewStateMachine(complaints, cfg.Meta.FlowID, cfg.Meta.FlowCTA)
	tracker := application.NewTrackHandler(complaints)
	manager := application.NewSessionManager(s.sessions, limiter, machine, tracker, metaClient, s.files, s.metrics, conv)
	aiJob := application.NewAIParseJob(s.sessions, locker, parser, metaClient, s.metrics)
	flow := application.NewFlowSubmissionHandler(complaints, s.metrics)

	s.dedupe = msgdedupe.New(conv.DedupeTTL)
	go s.dedupe.Run(ctx, time.Minute)

	s.turnPool = msgworker.NewPool("turns", cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	s.aiPool = msgworker.NewPool("ai-parse", max(2, cfg.WorkerPool.Size/4), cfg.WorkerPool.QueueSize)
	for _, p := range []*msgworker.Pool{s.turnPool, s.aiPool} {
		p.OnJobDone = func(kind string, _ error, elapsed time.Duration) {
			s.metrics.ObserveJob(kind, elapsed)
		}
	}

	s.processor = application.NewProcessor(application.ProcessorDeps{
		Dedupe:  s.dedupe,
		Turns:   s.turnPool,
		AIJobs:  s.aiPool,
		Locker:  locker,
		Store:   s.sessions,
		Manager: manager,
		Flow:    flow,
		AIJob:   aiJob,
		Sender:  metaClient,
		Metrics: s.metrics,
	})

	s.turnPool.Start(ctx)
	s.aiPool.Start(ctx)
	return s, nil
}

func (s *services) healthSources() rest.HealthSources {
	h := rest.HealthSources{
		StoreMode: s.sessions.Mode,
		Pools:     []*msgworker.Pool{s.turnPool, s.aiPool},
		Dedupe:    s.dedupe,
		Storage:   s.files,
	}
	if s.monitor != nil {
		h.Valkey = s.monitor
	}
	if s.breaker != nil {
		h.Breaker = s.breaker
	}
	return h
}

// stop drains the pools before closing the connections their jobs use.
func (s *services) stop() {
	s.turnPool.Stop()
	s.aiPool.Stop()

	if s.valkey != nil {
		s.valkey.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("[REST] Failed to close database")
		}
	}
}
