package application

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/metrics"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/msgworker"
	"github.com/sirupsen/logrus"
)

// Job kinds dispatched to the worker pools.
const (
	JobKindTurn    = "turn"
	JobKindAIParse = "ai_parse"
)

type TurnHandler interface {
	HandleIncomingMessage(ctx context.Context, msg message.Inbound) (TurnResult, error)
}

type FlowHandler interface {
	Handle(ctx context.Context, msg message.Inbound) message.Reply
}

type AIJobRunner interface {
	Run(ctx context.Context, user string) error
	Revert(ctx context.Context, user, notice string)
}

// Dispatcher queues keyed jobs; msgworker.Pool implements it.
type Dispatcher interface {
	TryDispatch(job msgworker.Job) bool
}

// Deduper reports whether a message id is new.
type Deduper interface {
	FirstSeen(id string) bool
}

// Processor turns deduplicated inbound messages into serialized turns:
// lock the user, run the manager, persist, reply, then schedule AI work.
type Processor struct {
	dedupe  Deduper
	turns   Dispatcher
	aiJobs  Dispatcher
	locker  session.Locker
	store   session.Store
	manager TurnHandler
	flow    FlowHandler
	aiJob   AIJobRunner
	sender  Sender
	metrics *metrics.Metrics
}

type ProcessorDeps struct {
	Dedupe  Deduper
	Turns   Dispatcher
	AIJobs  Dispatcher
	Locker  session.Locker
	Store   session.Store
	Manager TurnHandler
	Flow    FlowHandler
	AIJob   AIJobRunner
	Sender  Sender
	Metrics *metrics.Metrics
}

func NewProcessor(d ProcessorDeps) *Processor {
	return &Processor{
		dedupe:  d.Dedupe,
		turns:   d.Turns,
		aiJobs:  d.AIJobs,
		locker:  d.Locker,
		store:   d.Store,
		manager: d.Manager,
		flow:    d.Flow,
		aiJob:   d.AIJob,
		sender:  d.Sender,
		metrics: d.Metrics,
	}
}

// Submit queues msg unless its id was already seen. It never blocks.
func (p *Processor) Submit(msg message.Inbound) bool {
	p.metrics.IncMessage(string(msg.Type))

	if msg.ID != "" && !p.dedupe.FirstSeen(msg.ID) {
		p.metrics.IncDuplicate()
		logrus.WithFields(logrus.Fields{"user": msg.From, "message_id": msg.ID}).Debug("[PROCESSOR] Duplicate delivery ignored")
		return false
	}

	ok := p.turns.TryDispatch(msgworker.Job{
		Key:  msg.From,
		Kind: JobKindTurn,
		Handler: func(ctx context.Context) error {
			return p.Process(ctx, msg)
		},
	})
	if !ok {
		p.metrics.IncDropped(JobKindTurn)
	}
	return ok
}

// Process handles one message end to end. Every failure is contained here.
func (p *Processor) Process(ctx context.Context, msg message.Inbound) (err error) {
	log := logrus.WithFields(logrus.Fields{"user": msg.From, "message_id": msg.ID, "type": msg.Type})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("[PROCESSOR] Panic while handling message: %v", r)
			p.send(ctx, msg.From, message.TextReply(msgGeneric))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if msg.IsFlowSubmission() {
		p.send(ctx, msg.From, p.flow.Handle(ctx, msg))
		return nil
	}

	var result TurnResult
	lockErr := p.locker.WithLock(ctx, msg.From, func(ctx context.Context) error {
		res, err := p.manager.HandleIncomingMessage(ctx, msg)
		if err != nil {
			log.WithError(err).Error("[PROCESSOR] Turn failed, session left unchanged")
			p.send(ctx, msg.From, message.TextReply(msgGeneric))
			return err
		}
		result = res

		switch {
		case res.EndSession:
			p.store.Del(ctx, msg.From)
		case res.SaveSession && res.Session != nil:
			p.store.Set(ctx, res.Session)
		}

		for _, r := range res.Replies {
			p.send(ctx, msg.From, r)
		}
		return nil
	})
	if lockErr != nil {
		return lockErr
	}

	if result.ScheduleAIParse {
		p.scheduleAIParse(ctx, msg.From)
	}
	return nil
}

func (p *Processor) scheduleAIParse(ctx context.Context, user string) {
	ok := p.aiJobs.TryDispatch(msgworker.Job{
		Key:  user,
		Kind: JobKindAIParse,
		Handler: func(ctx context.Context) error {
			return p.aiJob.Run(ctx, user)
		},
	})
	if !ok {
		p.metrics.IncDropped(JobKindAIParse)
		logrus.WithField("user", user).Warn("[PROCESSOR] AI queue full, reverting to free-form")
		p.aiJob.Revert(ctx, user, msgAIFailed)
	}
}

func (p *Processor) send(ctx context.Context, to string, r message.Reply) {
	if err := p.sender.Send(ctx, to, r); err != nil {
		p.metrics.IncSendError()
		logrus.WithError(err).WithField("user", to).Error("[PROCESSOR] Failed to send reply")
	}
}
