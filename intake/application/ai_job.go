package application

import (
	"context"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/metrics"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
	"github.com/sirupsen/logrus"
)

// Sender delivers replies to a citizen.
type Sender interface {
	Send(ctx context.Context, to string, r message.Reply) error
}

// Parser extracts fields from free text.
type Parser interface {
	Parse(ctx context.Context, text string, documents []string) (ParseResult, error)
}

// AIParseJob resumes a session parked in AI_PROCESSING once the model has
// answered. The model call runs outside the user's lock; the session is
// re-checked before anything is written.
type AIParseJob struct {
	store   session.Store
	locker  session.Locker
	parser  Parser
	sender  Sender
	metrics *metrics.Metrics
}

func NewAIParseJob(store session.Store, locker session.Locker, parser Parser, sender Sender, m *metrics.Metrics) *AIParseJob {
	return &AIParseJob{store: store, locker: locker, parser: parser, sender: sender, metrics: m}
}

type parseSnapshot struct {
	text        string
	documents   []string
	requestedAt time.Time
}

// Run processes the pending free-form text of user.
func (j *AIParseJob) Run(ctx context.Context, user string) error {
	log := logrus.WithField("user", user)

	var snap *parseSnapshot
	err := j.locker.WithLock(ctx, user, func(ctx context.Context) error {
		s := j.store.Get(ctx, user)
		if s == nil || s.State != session.StateAIProcessing {
			return nil
		}
		snap = &parseSnapshot{text: s.FreeFormTextBuffer, documents: documentSummaries(s.Data), requestedAt: s.AIRequestedAt}
		return nil
	})
	if err != nil {
		return err
	}
	if snap == nil {
		log.Debug("[AI_JOB] Session left AI_PROCESSING before the job started, skipping")
		j.metrics.IncAIParse(metrics.AIParseAborted)
		return nil
	}

	result, parseErr := j.parser.Parse(ctx, snap.text, snap.documents)

	return j.locker.WithLock(ctx, user, func(ctx context.Context) error {
		s := j.store.Get(ctx, user)
		if s == nil || s.State != session.StateAIProcessing || !s.AIRequestedAt.Equal(snap.requestedAt) {
			log.Info("[AI_JOB] Session changed while the model was running, discarding result")
			j.metrics.IncAIParse(metrics.AIParseAborted)
			return nil
		}

		if parseErr != nil {
			log.WithError(parseErr).Error("[AI_JOB] Parse failed, reverting to free-form")
			j.metrics.IncAIParse(metrics.AIParseFailed)
			j.revert(ctx, s, msgAIFailed)
			return nil
		}

		next, r := resume(s, result)
		if err := j.sender.Send(ctx, user, r); err != nil {
			log.WithError(err).Error("[AI_JOB] Failed to send parse result, reverting to free-form")
			j.metrics.IncSendError()
			j.metrics.IncAIParse(metrics.AIParseFailed)
			j.revert(ctx, s, msgAIFailed)
			return nil
		}
		j.store.Set(ctx, next)

		if next.State == session.StateConfirm {
			j.metrics.IncAIParse(metrics.AIParseComplete)
		} else {
			j.metrics.IncAIParse(metrics.AIParsePartial)
		}
		log.WithField("state", next.State).Info("[AI_JOB] Free-form text parsed")
		return nil
	})
}

// Revert puts user back into free-form mode with notice. Used when the job
// could not even be scheduled.
func (j *AIParseJob) Revert(ctx context.Context, user, notice string) {
	_ = j.locker.WithLock(ctx, user, func(ctx context.Context) error {
		if s := j.store.Get(ctx, user); s != nil && s.State == session.StateAIProcessing {
			j.revert(ctx, s, notice)
		}
		return nil
	})
}

func (j *AIParseJob) revert(ctx context.Context, s *session.Session, notice string) {
	s = s.Clone()
	s.State = session.StateCollectFreeForm
	s.AIRequestedAt = time.Time{}
	j.store.Set(ctx, s)
	if err := j.sender.Send(ctx, s.User, message.TextReply(notice)); err != nil {
		j.metrics.IncSendError()
		logrus.WithError(err).WithField("user", s.User).Warn("[AI_JOB] Failed to notify user")
	}
}

// resume merges the parse result and picks the next state.
func resume(current *session.Session, result ParseResult) (*session.Session, message.Reply) {
	s := current.Clone()
	mergeData(&s.Data, result.Partial)
	if s.Data.Phone == "" {
		if phone, err := validations.ValidatePhone(s.User); err == nil {
			s.Data.Phone = phone
		}
	}

	s.FreeFormTextBuffer = ""
	s.AIRequestedAt = time.Time{}

	missing := s.Data.Missing(session.RequiredOrder)
	if len(missing) == 0 {
		s.State = session.StateConfirm
		s.PendingMissingFields = nil
		return s, message.TextReply(summary(s.Data))
	}

	s.State = session.StateFillMissing
	s.PendingMissingFields = missing
	return s, prefixed(missingSummary(s.Data, missing), promptFor(missing[0]))
}

// mergeData copies every filled field of src into dst.
func mergeData(dst *session.Data, src session.Data) {
	set := func(d *string, v string) {
		if v != "" {
			*d = v
		}
	}
	set(&dst.Name, src.Name)
	set(&dst.Email, src.Email)
	set(&dst.Phone, src.Phone)
	set(&dst.Title, src.Title)
	set(&dst.Description, src.Description)
	set(&dst.Category, src.Category)
	set(&dst.District, src.District)
	set(&dst.Subdistrict, src.Subdistrict)
	set(&dst.Area, src.Area)
	if dst.Location == "" {
		dst.Location = src.Location
	}
	if src.Latitude != nil && src.Longitude != nil && !dst.Has(session.FieldLocation) {
		dst.SetCoordinates(*src.Latitude, *src.Longitude, "")
	}
}

func documentSummaries(d session.Data) []string {
	out := make([]string, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		out = append(out, a.MimeType+": "+a.FileName)
	}
	return out
}
