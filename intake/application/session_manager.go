package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/meta"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/storage"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// MediaDownloader fetches an inbound attachment from the messaging provider.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) (meta.Media, error)
}

// FileStore persists attachments durably.
type FileStore interface {
	Persist(ctx context.Context, data []byte, fileName, mime string) (storage.Stored, error)
	Limit(kind storage.Kind) string
}

// TurnResult is what one inbound message produced. The caller persists
// Session when SaveSession is set and deletes it when EndSession is set.
type TurnResult struct {
	Replies         []message.Reply
	Session         *session.Session
	SaveSession     bool
	EndSession      bool
	Grievance       *grievance.Created
	ScheduleAIParse bool
}

var (
	cancelKeywords = []string{"cancel", "stop", "exit", "quit", "band karo"}
	fileIntents    = []string{"1", "file", "complaint", "grievance", "register", "file a grievance", "new complaint"}
	trackIntents   = []string{"2", "track", "status", "check", "track a grievance", "check status"}
	otherIntents   = []string{"3", "other", "something else", "nothing", "no", "bye"}
)

// SessionManager is the entry point for a citizen message.
type SessionManager struct {
	store   session.Store
	limiter session.RateLimiter
	machine *StateMachine
	tracker *TrackHandler
	media   MediaDownloader
	files   FileStore
	metrics *metrics.Metrics
	now     func() time.Time

	staleAfter   time.Duration
	aiTimeout    time.Duration
	minFreeChars int
}

func NewSessionManager(
	store session.Store,
	limiter session.RateLimiter,
	machine *StateMachine,
	tracker *TrackHandler,
	media MediaDownloader,
	files FileStore,
	m *metrics.Metrics,
	cfg config.ConversationConfig,
) *SessionManager {
	return &SessionManager{
		store:        store,
		limiter:      limiter,
		machine:      machine,
		tracker:      tracker,
		media:        media,
		files:        files,
		metrics:      m,
		now:          time.Now,
		staleAfter:   cfg.StaleAfter,
		aiTimeout:    cfg.AIProcessingTimeout,
		minFreeChars: 20,
	}
}

// HandleIncomingMessage runs the checks below in order; the first one that
// answers ends the turn. A saved session has its activity time refreshed.
func (sm *SessionManager) HandleIncomingMessage(ctx context.Context, msg message.Inbound) (TurnResult, error) {
	now := sm.now()
	res, err := sm.handle(ctx, msg, now)
	if err == nil && res.SaveSession && res.Session != nil {
		res.Session = res.Session.Clone()
		res.Session.LastMessageAt = now
	}
	return res, err
}

func (sm *SessionManager) handle(ctx context.Context, msg message.Inbound, now time.Time) (TurnResult, error) {
	log := logrus.WithFields(logrus.Fields{"user": msg.From, "message_id": msg.ID})

	if d := sm.limiter.Allow(ctx, msg.From); !d.Allowed {
		sm.metrics.IncRateLimited()
		log.Warn("[SESSION_MANAGER] Rate limit exceeded")
		if d.Notify {
			return TurnResult{Replies: []message.Reply{message.TextReply(msgRateLimited)}}, nil
		}
		return TurnResult{}, nil
	}

	s := sm.store.Get(ctx, msg.From)
	if s == nil {
		s = session.New(msg.From, now)
		log.Info("[SESSION_MANAGER] New session")
		return saved(s, intentMenu(msgWelcome)), nil
	}

	if s.IsStale(now, sm.staleAfter) {
		log.WithField("last_message_at", s.LastMessageAt).Info("[SESSION_MANAGER] Stale session reset")
		s = s.Clone()
		s.Reset(now)
		return saved(s, intentMenu(msgWelcomeBack)), nil
	}

	text := strings.ToLower(msg.Body())
	if isKeyword(text, cancelKeywords...) {
		log.WithField("state", s.State).Info("[SESSION_MANAGER] Conversation cancelled")
		return TurnResult{
			Replies:    []message.Reply{message.TextReply(msgCancelled), intentMenu("What would you like to do next?")},
			Session:    session.New(msg.From, now),
			EndSession: true,
		}, nil
	}

	if isKeyword(text, "new") {
		return sm.delegate(ctx, s, Input{Message: msg, Now: now})
	}

	// Intent is chosen once; a track session stays at START until resolved.
	if s.Intent == "" {
		return sm.chooseIntent(ctx, s, msg, now)
	}

	if s.Intent == session.IntentTrack {
		return sm.track(ctx, s, msg)
	}

	if s.Intent != session.IntentFile {
		return TurnResult{Replies: []message.Reply{message.TextReply(msgGoodbye)}, Session: s, EndSession: true}, nil
	}

	if msg.IsMedia() {
		return sm.ingestMedia(ctx, s, msg, now)
	}

	if s.State == session.StateAIProcessing && sm.aiTimeout > 0 && !s.AIRequestedAt.IsZero() && now.Sub(s.AIRequestedAt) > sm.aiTimeout {
		log.WithField("requested_at", s.AIRequestedAt).Warn("[SESSION_MANAGER] AI processing timed out, reverting to free-form")
		s = s.Clone()
		s.State = session.StateCollectFreeForm
		s.AIRequestedAt = time.Time{}
		return saved(s, message.TextReply(msgAITimedOut)), nil
	}

	return sm.delegate(ctx, s, Input{Message: msg, Now: now})
}

func (sm *SessionManager) chooseIntent(ctx context.Context, s *session.Session, msg message.Inbound, now time.Time) (TurnResult, error) {
	text := strings.ToLower(msg.Body())
	s = s.Clone()

	switch {
	case isKeyword(text, fileIntents...):
		s.Intent = session.IntentFile
		s.State = session.StateCollectFileMode
		return saved(s, fileModeMenu(sm.machine.FlowEnabled())), nil
	case isKeyword(text, trackIntents...) || strings.HasPrefix(text, "track "):
		s.Intent = session.IntentTrack
		return sm.track(ctx, s, msg)
	case isKeyword(text, otherIntents...):
		s.Intent = session.IntentOther
		return TurnResult{Replies: []message.Reply{message.TextReply(msgGoodbye)}, Session: s, EndSession: true}, nil
	}

	// A reference id typed straight away is a track request.
	if _, ok := extractReference(msg.Body()); ok {
		s.Intent = session.IntentTrack
		return sm.track(ctx, s, msg)
	}
	return saved(s, intentMenu(msgIntentRetry)), nil
}

func (sm *SessionManager) track(ctx context.Context, s *session.Session, msg message.Inbound) (TurnResult, error) {
	res := sm.tracker.Handle(ctx, msg.Body())
	if res.Resolved {
		return TurnResult{Replies: []message.Reply{res.Reply}, Session: s, EndSession: true}, nil
	}
	return saved(s, res.Reply), nil
}

func (sm *SessionManager) ingestMedia(ctx context.Context, s *session.Session, msg message.Inbound, now time.Time) (TurnResult, error) {
	if !AcceptsMedia(s.State) {
		return saved(s, prefixed(msgMediaHere, sm.machine.currentPrompt(s))), nil
	}
	if s.Data.HasMedia(msg.Media.ID) {
		return saved(s, message.TextReply(msgMediaDup)), nil
	}

	log := logrus.WithFields(logrus.Fields{"user": msg.From, "media_id": msg.Media.ID})

	if _, ok := storage.KindOf(msg.Media.MimeType); !ok && msg.Media.MimeType != "" {
		return TurnResult{Replies: []message.Reply{message.TextReply(msgMediaUnsupported)}}, nil
	}

	media, err := sm.media.DownloadMedia(ctx, msg.Media.ID)
	if err != nil {
		log.WithError(err).Error("[SESSION_MANAGER] Media download failed")
		return TurnResult{Replies: []message.Reply{sm.mediaError(err)}}, nil
	}
	mime := media.MimeType
	if mime == "" {
		mime = msg.Media.MimeType
	}

	stored, err := sm.files.Persist(ctx, media.Data, msg.Media.FileName, mime)
	if err != nil {
		log.WithError(err).Warn("[SESSION_MANAGER] Attachment rejected")
		return TurnResult{Replies: []message.Reply{sm.mediaError(err)}}, nil
	}

	att := grievance.Attachment{
		URL:      stored.URL,
		FileName: stored.FileName,
		MimeType: mime,
		MediaID:  msg.Media.ID,
	}
	log.WithField("url", att.URL).Info("[SESSION_MANAGER] Attachment stored")
	return sm.delegate(ctx, s, Input{Message: msg, Attachment: &att, Now: now})
}

func (sm *SessionManager) mediaError(err error) message.Reply {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return message.TextReply(msgMediaUnsupported)
	case errors.Is(err, storage.ErrFileTooLarge):
		return message.TextReply(fmt.Sprintf(msgMediaTooLarge, sm.files.Limit(storage.KindImage), sm.files.Limit(storage.KindDocument)))
	case errors.Is(err, storage.ErrNotConfigured), errors.Is(err, meta.ErrNotConfigured):
		return message.TextReply(msgMediaUnavailable)
	}
	return message.TextReply(msgMediaFailed)
}

func (sm *SessionManager) delegate(ctx context.Context, s *session.Session, in Input) (TurnResult, error) {
	out, err := sm.machine.Handle(ctx, s, in)
	if err != nil {
		return TurnResult{}, err
	}

	if out.StartAIParse {
		if !sm.enoughFreeForm(out.Session) {
			return saved(s, message.TextReply(fmt.Sprintf(msgFreeFormShort, sm.minFreeChars))), nil
		}
		out.Session.AIRequestedAt = in.Now
	}

	if out.Created != nil {
		sm.metrics.IncGrievance(string(grievance.SourceWhatsApp))
		logrus.WithFields(logrus.Fields{
			"user":      s.User,
			"reference": out.Created.ReferenceID,
		}).Info("[SESSION_MANAGER] Grievance submitted")
	}

	return TurnResult{
		Replies:         out.Replies,
		Session:         out.Session,
		SaveSession:     !out.EndSession,
		EndSession:      out.EndSession,
		Grievance:       out.Created,
		ScheduleAIParse: out.StartAIParse,
	}, nil
}

func (sm *SessionManager) enoughFreeForm(s *session.Session) bool {
	return len([]rune(strings.TrimSpace(s.FreeFormTextBuffer))) >= sm.minFreeChars || len(s.Data.Attachments) > 0
}

func saved(s *session.Session, replies ...message.Reply) TurnResult {
	return TurnResult{Replies: replies, Session: s, SaveSession: true}
}
