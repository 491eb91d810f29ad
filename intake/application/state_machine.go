package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
	"github.com/sirupsen/logrus"
)

// FreeFormMax caps the AI-mode text buffer.
const FreeFormMax = 15000

// Input is one turn handed to the state machine. Attachment is set when the
// message carried media that has already been stored.
type Input struct {
	Message    message.Inbound
	Attachment *grievance.Attachment
	Now        time.Time
}

// Outcome is the result of one transition. Session is always a new value;
// the caller's session is never mutated.
type Outcome struct {
	Replies      []message.Reply
	Session      *session.Session
	Created      *grievance.Created
	EndSession   bool
	StartAIParse bool
}

type stateHandler func(ctx context.Context, s *session.Session, in Input) (Outcome, error)

// StateMachine drives the filing dialogue from COLLECT_FILE_MODE to DONE.
type StateMachine struct {
	creator  grievance.Creator
	flowID   string
	flowCTA  string
	handlers map[session.State]stateHandler
}

func NewStateMachine(creator grievance.Creator, flowID, flowCTA string) *StateMachine {
	if flowCTA == "" {
		flowCTA = "Open form"
	}
	m := &StateMachine{creator: creator, flowID: flowID, flowCTA: flowCTA}
	m.handlers = map[session.State]stateHandler{
		session.StateCollectFileMode:    m.collectFileMode,
		session.StateCollectBasics:      m.collectBasics,
		session.StateCollectDescription: m.collectDescription,
		session.StateCollectPhone:       m.collectPhone,
		session.StateCollectMedia:       m.collectMedia,
		session.StateCollectFreeForm:    m.collectFreeForm,
		session.StateAIProcessing:       m.aiProcessing,
		session.StateFillMissing:        m.fillMissing,
		session.StateConfirm:            m.confirm,
		session.StateEditField:          m.editField,
		session.StateDone:               m.done,
	}
	return m
}

// FlowEnabled reports whether the form option is offered.
func (m *StateMachine) FlowEnabled() bool {
	return m.flowID != ""
}

// AcceptsMedia reports whether attachments are collected in state.
func AcceptsMedia(state session.State) bool {
	switch state {
	case session.StateCollectDescription, session.StateCollectMedia, session.StateCollectFreeForm:
		return true
	}
	return false
}

// Handle runs one transition for the session's current state.
func (m *StateMachine) Handle(ctx context.Context, current *session.Session, in Input) (Outcome, error) {
	s := current.Clone()

	if isKeyword(in.Message.Body(), "new") {
		return m.restartBasics(s, in), nil
	}

	// Nothing but the wait reply happens while the description is being parsed.
	if s.State != session.StateAIProcessing && in.Message.Type == message.TypeLocation && in.Message.Location != nil && !m.expectsLocation(s) {
		return m.opportunisticPin(s, in), nil
	}

	h, ok := m.handlers[s.State]
	if !ok {
		return Outcome{}, fmt.Errorf("no transition for state %s", s.State)
	}
	return h(ctx, s, in)
}

func (m *StateMachine) restartBasics(s *session.Session, in Input) Outcome {
	s.Reset(in.Now)
	s.Intent = session.IntentFile
	s.FileMode = session.FileModeStep
	s.State = session.StateCollectBasics
	return reply(s, promptFor(session.BasicsOrder[0]))
}

// expectsLocation reports whether the current prompt is the location slot,
// in which case a pin is the answer rather than a side input.
func (m *StateMachine) expectsLocation(s *session.Session) bool {
	switch s.State {
	case session.StateCollectBasics:
		f, ok := s.Data.FirstMissing(session.BasicsOrder)
		return ok && f == session.FieldLocation
	case session.StateFillMissing:
		return len(s.PendingMissingFields) > 0 && s.PendingMissingFields[0] == session.FieldLocation
	case session.StateEditField:
		return s.PendingEditField == session.FieldLocation
	}
	return false
}

func (m *StateMachine) opportunisticPin(s *session.Session, in Input) Outcome {
	if err := applyPin(&s.Data, *in.Message.Location); err != nil {
		return reply(s, withError(err, m.currentPrompt(s)))
	}
	if s.State == session.StateCollectBasics {
		// The pin may have completed the basics.
		if _, ok := s.Data.FirstMissing(session.BasicsOrder); !ok {
			s.State = session.StateCollectDescription
		}
	}
	return reply(s, prefixed(msgLocationSaved, m.currentPrompt(s)))
}

// currentPrompt re-emits what the session is waiting for.
func (m *StateMachine) currentPrompt(s *session.Session) message.Reply {
	switch s.State {
	case session.StateCollectFileMode:
		return fileModeMenu(m.FlowEnabled())
	case session.StateCollectBasics:
		if f, ok := s.Data.FirstMissing(session.BasicsOrder); ok {
			return promptFor(f)
		}
		return message.TextReply(msgDescriptionPrompt)
	case session.StateCollectDescription:
		if s.PendingDescriptionBuffer != "" {
			return message.TextReply(msgDescriptionMore)
		}
		return message.TextReply(msgDescriptionPrompt)
	case session.StateCollectPhone:
		return message.TextReply(msgPhonePrompt)
	case session.StateCollectMedia:
		return message.TextReply(msgMediaPrompt)
	case session.StateCollectFreeForm:
		if s.FreeFormTextBuffer != "" {
			return message.TextReply(msgFreeFormMore)
		}
		return message.TextReply(msgFreeFormPrompt)
	case session.StateAIProcessing:
		return message.TextReply(msgAIWorking)
	case session.StateFillMissing:
		if len(s.PendingMissingFields) > 0 {
			return promptFor(s.PendingMissingFields[0])
		}
		return message.TextReply(summary(s.Data))
	case session.StateEditField:
		return promptFor(s.PendingEditField)
	case session.StateConfirm:
		return message.TextReply(summary(s.Data))
	case session.StateDone:
		return message.TextReply(msgDone)
	}
	return intentMenu(msgWelcome)
}

func (m *StateMachine) collectFileMode(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	switch strings.ToLower(in.Message.Body()) {
	case "a", "ai", "own words", "in my own words", "free":
		s.FileMode = session.FileModeAI
		s.State = session.StateCollectFreeForm
		return reply(s, message.TextReply(msgFreeFormPrompt)), nil
	case "b", "step", "step by step", "steps":
		s.FileMode = session.FileModeStep
		s.State = session.StateCollectBasics
		return reply(s, promptFor(session.BasicsOrder[0])), nil
	case "c", "form":
		if !m.FlowEnabled() {
			break
		}
		out := reply(s, message.Reply{Flow: &message.Flow{
			FlowID:    m.flowID,
			FlowToken: "igrs-" + strings.TrimPrefix(s.User, "+"),
			Body:      msgFlowBody,
			CTA:       m.flowCTA,
		}})
		out.EndSession = true
		return out, nil
	}
	return reply(s, withErrorText(msgFileModeRetry, fileModeMenu(m.FlowEnabled()))), nil
}

func (m *StateMachine) collectBasics(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	f, ok := s.Data.FirstMissing(session.BasicsOrder)
	if !ok {
		s.State = session.StateCollectDescription
		return reply(s, message.TextReply(msgDescriptionPrompt)), nil
	}

	if err := fieldByName[f].apply(&s.Data, in.Message); err != nil {
		return reply(s, withError(err, promptFor(f))), nil
	}

	next, ok := s.Data.FirstMissing(session.BasicsOrder)
	if !ok {
		s.State = session.StateCollectDescription
		return reply(s, message.TextReply(msgDescriptionPrompt)), nil
	}
	return reply(s, promptFor(next)), nil
}

func (m *StateMachine) collectDescription(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Attachment != nil {
		return m.addAttachment(s, in, func(s *session.Session, caption string) error {
			return appendBuffer(&s.PendingDescriptionBuffer, caption, validations.DescriptionMax)
		}), nil
	}

	text := in.Message.Body()
	if isKeyword(text, "done") {
		desc, err := validations.ValidateDescription(s.PendingDescriptionBuffer)
		if err != nil {
			return reply(s, withError(err, message.TextReply(msgDescriptionMore))), nil
		}
		s.Data.Description = desc
		s.PendingDescriptionBuffer = ""
		s.State = session.StateCollectPhone
		return reply(s, message.TextReply(msgPhonePrompt)), nil
	}
	if text == "" {
		return reply(s, m.currentPrompt(s)), nil
	}

	if err := appendBuffer(&s.PendingDescriptionBuffer, text, validations.DescriptionMax); err != nil {
		return reply(s, message.TextReply(descriptionTooLong())), nil
	}
	return reply(s, message.TextReply(msgDescriptionMore)), nil
}

func (m *StateMachine) collectPhone(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	if err := applyPhone(&s.Data, in.Message); err != nil {
		return reply(s, withError(err, message.TextReply(msgPhonePrompt))), nil
	}
	s.State = session.StateCollectMedia
	return reply(s, message.TextReply(msgMediaPrompt)), nil
}

func (m *StateMachine) collectMedia(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Attachment != nil {
		return m.addAttachment(s, in, nil), nil
	}
	if isKeyword(in.Message.Body(), "done", "skip", "no") {
		return m.toConfirm(s), nil
	}
	return reply(s, message.TextReply(msgMediaPrompt)), nil
}

func (m *StateMachine) collectFreeForm(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Attachment != nil {
		return m.addAttachment(s, in, func(s *session.Session, caption string) error {
			return appendBuffer(&s.FreeFormTextBuffer, caption, FreeFormMax)
		}), nil
	}

	text := in.Message.Body()
	if isKeyword(text, "done") {
		s.State = session.StateAIProcessing
		out := reply(s, message.TextReply(msgAIProcessing))
		out.StartAIParse = true
		return out, nil
	}
	if text == "" {
		return reply(s, m.currentPrompt(s)), nil
	}

	if err := appendBuffer(&s.FreeFormTextBuffer, text, FreeFormMax); err != nil {
		return reply(s, message.TextReply(fmt.Sprintf(msgFreeFormLong, FreeFormMax))), nil
	}
	return reply(s, message.TextReply(msgFreeFormMore)), nil
}

func (m *StateMachine) aiProcessing(_ context.Context, s *session.Session, _ Input) (Outcome, error) {
	return reply(s, message.TextReply(msgAIWorking)), nil
}

func (m *StateMachine) fillMissing(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	if len(s.PendingMissingFields) == 0 {
		return m.toConfirm(s), nil
	}

	f := s.PendingMissingFields[0]
	if err := fieldByName[f].apply(&s.Data, in.Message); err != nil {
		return reply(s, withError(err, promptFor(f))), nil
	}

	s.PendingMissingFields = s.PendingMissingFields[1:]
	// An earlier answer (a pin, say) may already have filled later slots.
	for len(s.PendingMissingFields) > 0 && s.Data.Has(s.PendingMissingFields[0]) {
		s.PendingMissingFields = s.PendingMissingFields[1:]
	}
	if len(s.PendingMissingFields) == 0 {
		return m.toConfirm(s), nil
	}
	return reply(s, promptFor(s.PendingMissingFields[0])), nil
}

func (m *StateMachine) confirm(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	text := strings.ToLower(in.Message.Body())

	switch {
	case isKeyword(text, "yes", "submit", "y", "confirm"):
		return m.submit(ctx, s, in)
	case text == "edit":
		return reply(s, message.TextReply(msgEditWhich)), nil
	case strings.HasPrefix(text, "edit "):
		f, ok := matchEditField(strings.TrimPrefix(text, "edit "))
		if !ok {
			return reply(s, message.TextReply(msgEditWhich)), nil
		}
		s.State = session.StateEditField
		s.PendingEditField = f
		s.Data.Clear(f)
		return reply(s, promptFor(f)), nil
	}
	return reply(s, message.TextReply(msgConfirmRetry+"\n\n"+summary(s.Data))), nil
}

func (m *StateMachine) submit(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if missing := s.Data.Missing(session.RequiredOrder); len(missing) > 0 {
		s.State = session.StateFillMissing
		s.PendingMissingFields = missing
		return reply(s, prefixed(msgMissingBefore+"\n"+missingSummary(s.Data, missing), promptFor(missing[0]))), nil
	}

	g := buildGrievance(s, grievance.SourceWhatsApp)
	if err := validations.ValidateGrievance(ctx, g); err != nil {
		return reply(s, message.TextReply("⚠️ "+err.Error()+"\n\n"+summary(s.Data))), nil
	}

	created, err := m.creator.Create(ctx, g)
	if err != nil {
		logrus.WithError(err).WithField("user", s.User).Error("[STATE_MACHINE] Failed to create grievance")
		return reply(s, message.TextReply(msgSubmitFailed)), nil
	}

	s.State = session.StateDone
	out := reply(s, message.TextReply(fmt.Sprintf(msgSubmitted, created.ReferenceID)))
	out.Created = &created
	out.EndSession = true
	return out, nil
}

func (m *StateMachine) editField(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	f := s.PendingEditField
	def, ok := fieldByName[f]
	if !ok {
		return m.toConfirm(s), nil
	}
	if err := def.apply(&s.Data, in.Message); err != nil {
		return reply(s, withError(err, promptFor(f))), nil
	}
	return m.toConfirm(s), nil
}

func (m *StateMachine) done(_ context.Context, s *session.Session, _ Input) (Outcome, error) {
	return reply(s, message.TextReply(msgDone)), nil
}

func (m *StateMachine) toConfirm(s *session.Session) Outcome {
	s.State = session.StateConfirm
	s.PendingEditField = ""
	s.PendingMissingFields = nil
	return reply(s, message.TextReply(summary(s.Data)))
}

func (m *StateMachine) addAttachment(s *session.Session, in Input, onCaption func(*session.Session, string) error) Outcome {
	if !s.Data.AddAttachment(*in.Attachment) {
		return reply(s, message.TextReply(msgMediaDup))
	}
	if caption := strings.TrimSpace(in.Message.Text); caption != "" && onCaption != nil {
		// A caption that does not fit is dropped; the file is kept.
		_ = onCaption(s, caption)
	}
	return reply(s, message.TextReply(fmt.Sprintf(msgMediaReceived, len(s.Data.Attachments))))
}

// buildGrievance copies session data into a creation payload, dropping
// attachments that were never stored.
func buildGrievance(s *session.Session, source grievance.Source) grievance.Grievance {
	d := s.Data
	var attachments []grievance.Attachment
	for _, a := range d.Attachments {
		if a.Submittable() {
			attachments = append(attachments, a)
		}
	}
	return grievance.Grievance{
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Title:          d.Title,
		Description:    d.Description,
		Category:       grievance.Category(d.Category),
		District:       d.District,
		Subdistrict:    d.Subdistrict,
		Area:           d.Area,
		Location:       d.Location,
		Latitude:       d.Latitude,
		Longitude:      d.Longitude,
		Attachments:    attachments,
		Source:         source,
		WhatsAppNumber: s.User,
	}
}

func reply(s *session.Session, replies ...message.Reply) Outcome {
	return Outcome{Session: s, Replies: replies}
}

func withErrorText(text string, prompt message.Reply) message.Reply {
	return prefixed("⚠️ "+text, prompt)
}

func isKeyword(text string, keywords ...string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, k := range keywords {
		if text == k {
			return true
		}
	}
	return false
}

// appendBuffer joins text onto buf with a newline unless the result would
// exceed limit runes.
func appendBuffer(buf *string, text string, limit int) error {
	next := text
	if *buf != "" {
		next = *buf + "\n" + text
	}
	if len([]rune(next)) > limit {
		return fmt.Errorf("buffer limit of %d characters reached", limit)
	}
	*buf = next
	return nil
}
