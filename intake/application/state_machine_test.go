package application

import (
	"context"
	"strings"
	"testing"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(creator grievance.Creator) *StateMachine {
	return NewStateMachine(creator, "", "")
}

func step(t *testing.T, m *StateMachine, s *session.Session, msg message.Inbound) Outcome {
	t.Helper()
	out, err := m.Handle(context.Background(), s, Input{Message: msg, Now: testNow})
	require.NoError(t, err)
	require.NotNil(t, out.Session)
	return out
}

func firstText(out Outcome) string {
	if len(out.Replies) == 0 {
		return ""
	}
	return out.Replies[0].PlainText()
}

func TestFileModeStepStartsBasics(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectFileMode, session.Data{})
	s.FileMode = ""

	out := step(t, m, s, textMsg("b"))
	assert.Equal(t, session.StateCollectBasics, out.Session.State)
	assert.Equal(t, session.FileModeStep, out.Session.FileMode)
	assert.Equal(t, "What is your name?", firstText(out))
}

func TestFileModeFormOnlyWhenConfigured(t *testing.T) {
	s := sessionAt(session.StateCollectFileMode, session.Data{})

	out := step(t, newMachine(&fakeCreator{}), s, textMsg("c"))
	assert.Equal(t, session.StateCollectFileMode, out.Session.State)
	assert.False(t, out.EndSession)

	out = step(t, NewStateMachine(&fakeCreator{}, "flow-1", "Open"), s, textMsg("c"))
	require.NotNil(t, out.Replies[0].Flow)
	assert.Equal(t, "flow-1", out.Replies[0].Flow.FlowID)
	assert.True(t, out.EndSession)
}

func TestBasicsCollectsInOrder(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectBasics, session.Data{})

	inputs := []string{"Ram Kumar", "ram@example.com", "Pothole on Main St", "Roads", "Lucknow", "Lucknow Sadar", "Hazratganj"}
	for _, in := range inputs {
		s = step(t, m, s, textMsg(in)).Session
	}
	assert.Equal(t, "roads", s.Data.Category)
	f, ok := s.Data.FirstMissing(session.BasicsOrder)
	require.True(t, ok)
	assert.Equal(t, session.FieldLocation, f)

	out := step(t, m, s, textMsg("26.8467, 80.9462"))
	assert.Equal(t, session.StateCollectDescription, out.Session.State)
	assert.InDelta(t, 26.8467, *out.Session.Data.Latitude, 1e-9)
}

func TestBasicsValidationErrorRepeatsPrompt(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectBasics, session.Data{Name: "Ram Kumar"})

	out := step(t, m, s, textMsg("not-an-email"))
	assert.Equal(t, session.StateCollectBasics, out.Session.State)
	assert.Empty(t, out.Session.Data.Email)
	assert.Contains(t, firstText(out), "What is your email address?")
	assert.True(t, strings.HasPrefix(firstText(out), "⚠️"))
}

func TestCategoryPromptIsList(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectBasics, session.Data{Name: "Ram Kumar", Email: "ram@example.com"})

	out := step(t, m, s, textMsg("Broken street light"))
	require.NotNil(t, out.Replies[0].List)
	assert.Len(t, out.Replies[0].List.Sections[0].Rows, len(grievance.Categories))

	out = step(t, m, out.Session, textMsg("potholes"))
	require.NotNil(t, out.Replies[0].List, "error keeps the category menu")
	assert.Contains(t, out.Replies[0].List.Body, "Please choose one of")
}

func TestDescriptionBufferUntilDone(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectDescription, session.Data{})

	s = step(t, m, s, textMsg("Pothole on Main St")).Session
	s = step(t, m, s, textMsg("It has grown after rain")).Session
	out := step(t, m, s, textMsg("done"))

	assert.Equal(t, "Pothole on Main St\nIt has grown after rain", out.Session.Data.Description)
	assert.Empty(t, out.Session.PendingDescriptionBuffer)
	assert.Equal(t, session.StateCollectPhone, out.Session.State)
}

func TestDescriptionTooShortStays(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectDescription, session.Data{})

	s = step(t, m, s, textMsg("pothole")).Session
	out := step(t, m, s, textMsg("DONE"))
	assert.Equal(t, session.StateCollectDescription, out.Session.State)
	assert.Equal(t, "pothole", out.Session.PendingDescriptionBuffer)
	assert.Contains(t, firstText(out), "Add more details")
}

func TestPhoneKeywordsAndSkip(t *testing.T) {
	m := newMachine(&fakeCreator{})

	out := step(t, m, sessionAt(session.StateCollectPhone, session.Data{}), textMsg("Use Current"))
	assert.Equal(t, "+919876543210", out.Session.Data.Phone)
	assert.Equal(t, session.StateCollectMedia, out.Session.State)

	out = step(t, m, sessionAt(session.StateCollectPhone, session.Data{}), textMsg("+91 70123 45678"))
	assert.Equal(t, "+917012345678", out.Session.Data.Phone)

	out = step(t, m, sessionAt(session.StateCollectPhone, session.Data{}), textMsg("skip"))
	assert.Empty(t, out.Session.Data.Phone)
	assert.Equal(t, session.StateCollectMedia, out.Session.State)

	out = step(t, m, sessionAt(session.StateCollectPhone, session.Data{}), textMsg("12345"))
	assert.Equal(t, session.StateCollectPhone, out.Session.State)
}

func TestMediaDedupesByMediaID(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectMedia, completeData())
	att := grievance.Attachment{URL: "https://files.example.com/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", MediaID: "abc123"}

	out, err := m.Handle(context.Background(), s, Input{Message: imageMsg("abc123"), Attachment: &att, Now: testNow})
	require.NoError(t, err)
	out, err = m.Handle(context.Background(), out.Session, Input{Message: imageMsg("abc123"), Attachment: &att, Now: testNow})
	require.NoError(t, err)

	assert.Len(t, out.Session.Data.Attachments, 1)
	assert.Contains(t, firstText(out), "already sent")
}

func TestMediaDoneMovesToConfirm(t *testing.T) {
	out := step(t, newMachine(&fakeCreator{}), sessionAt(session.StateCollectMedia, completeData()), textMsg("done"))
	assert.Equal(t, session.StateConfirm, out.Session.State)
	assert.Contains(t, firstText(out), "Please review your grievance")
	assert.Contains(t, firstText(out), "Ram Kumar")
}

func TestConfirmSubmits(t *testing.T) {
	creator := &fakeCreator{}
	out := step(t, newMachine(creator), sessionAt(session.StateConfirm, completeData()), textMsg("Yes"))

	require.Equal(t, 1, creator.count())
	require.NotNil(t, out.Created)
	assert.True(t, out.EndSession)
	assert.Equal(t, session.StateDone, out.Session.State)
	assert.Contains(t, firstText(out), "31012026MLA001")

	g := creator.calls[0]
	assert.Equal(t, grievance.CategoryRoads, g.Category)
	assert.Equal(t, grievance.SourceWhatsApp, g.Source)
	assert.Equal(t, testUser, g.WhatsAppNumber)
}

func TestConfirmFiltersUnstoredAttachments(t *testing.T) {
	creator := &fakeCreator{}
	d := completeData()
	d.Attachments = []grievance.Attachment{
		{URL: "https://files.example.com/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", MediaID: "m1"},
		{URL: "", FileName: "b.jpg", MimeType: "image/jpeg", MediaID: "m2"},
	}

	step(t, newMachine(creator), sessionAt(session.StateConfirm, d), textMsg("submit"))

	require.Equal(t, 1, creator.count())
	require.Len(t, creator.calls[0].Attachments, 1)
	assert.Equal(t, "m1", creator.calls[0].Attachments[0].MediaID)
}

func TestConfirmNeverSubmitsIncompleteData(t *testing.T) {
	creator := &fakeCreator{}
	d := completeData()
	d.Email = ""

	out := step(t, newMachine(creator), sessionAt(session.StateConfirm, d), textMsg("yes"))
	assert.Zero(t, creator.count())
	assert.Equal(t, session.StateFillMissing, out.Session.State)
	assert.Equal(t, []session.Field{session.FieldEmail}, out.Session.PendingMissingFields)
	assert.Contains(t, firstText(out), "What is your email address?")

	invalid := completeData()
	invalid.Name = "R2D2"
	out = step(t, newMachine(creator), sessionAt(session.StateConfirm, invalid), textMsg("yes"))
	assert.Zero(t, creator.count())
	assert.Equal(t, session.StateConfirm, out.Session.State)
}

func TestConfirmCreationFailureKeepsSession(t *testing.T) {
	creator := &fakeCreator{err: errBoom}
	s := sessionAt(session.StateConfirm, completeData())

	out := step(t, newMachine(creator), s, textMsg("yes"))
	assert.Nil(t, out.Created)
	assert.False(t, out.EndSession)
	assert.Equal(t, session.StateConfirm, out.Session.State)
	assert.Equal(t, s.Data, out.Session.Data)
	assert.Contains(t, firstText(out), "try again")
}

func TestEditFieldRoundTrip(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateConfirm, completeData())

	out := step(t, m, s, textMsg("edit emal"))
	assert.Equal(t, session.StateEditField, out.Session.State)
	assert.Equal(t, session.FieldEmail, out.Session.PendingEditField)
	assert.Empty(t, out.Session.Data.Email)

	out = step(t, m, out.Session, textMsg("new.mail@example.com"))
	assert.Equal(t, session.StateConfirm, out.Session.State)
	assert.Equal(t, "new.mail@example.com", out.Session.Data.Email)
	assert.Empty(t, out.Session.PendingEditField)
}

func TestEditUnknownField(t *testing.T) {
	out := step(t, newMachine(&fakeCreator{}), sessionAt(session.StateConfirm, completeData()), textMsg("edit favourite colour"))
	assert.Equal(t, session.StateConfirm, out.Session.State)
	assert.Contains(t, firstText(out), "Which field")
}

func TestMatchEditField(t *testing.T) {
	cases := map[string]session.Field{
		"name":        session.FieldName,
		"Mobile":      session.FieldPhone,
		"tehsil":      session.FieldSubdistrict,
		"subdistrict": session.FieldSubdistrict,
		"district":    session.FieldDistrict,
		"distr":       session.FieldDistrict,
		"locaton":     session.FieldLocation,
		"desc":        session.FieldDescription,
		"categry":     session.FieldCategory,
	}
	for in, want := range cases {
		got, ok := matchEditField(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := matchEditField("xy")
	assert.False(t, ok)
}

func TestFillMissingConsumesQueue(t *testing.T) {
	m := newMachine(&fakeCreator{})
	d := completeData()
	d.District, d.Latitude, d.Longitude = "", nil, nil
	s := sessionAt(session.StateFillMissing, d)
	s.PendingMissingFields = []session.Field{session.FieldDistrict, session.FieldLocation}

	out := step(t, m, s, textMsg("L"))
	assert.Equal(t, []session.Field{session.FieldDistrict, session.FieldLocation}, out.Session.PendingMissingFields, "invalid answer does not advance")

	out = step(t, m, out.Session, textMsg("Lucknow"))
	assert.Equal(t, []session.Field{session.FieldLocation}, out.Session.PendingMissingFields)

	out = step(t, m, out.Session, pinMsg(26.85, 80.95))
	assert.Equal(t, session.StateConfirm, out.Session.State)
	assert.Empty(t, out.Session.PendingMissingFields)
	assert.Equal(t, "Hazratganj, Lucknow", out.Session.Data.Location)
}

func TestPinInAnyStateIsSavedWithoutAdvancing(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectBasics, session.Data{Name: "Ram Kumar"})

	out := step(t, m, s, pinMsg(26.85, 80.95))
	assert.Equal(t, session.StateCollectBasics, out.Session.State)
	assert.True(t, out.Session.Data.Has(session.FieldLocation))
	assert.Contains(t, firstText(out), "Location saved")
	assert.Contains(t, firstText(out), "What is your email address?")

	out = step(t, m, sessionAt(session.StateCollectPhone, completeData()), pinMsg(91, 80))
	assert.Equal(t, session.StateCollectPhone, out.Session.State)
	assert.Contains(t, firstText(out), "Latitude")
}

func TestNewRestartsBasicsFromAnyState(t *testing.T) {
	m := newMachine(&fakeCreator{})
	for _, st := range []session.State{session.StateConfirm, session.StateCollectFreeForm, session.StateDone} {
		out := step(t, m, sessionAt(st, completeData()), textMsg("New"))
		assert.Equal(t, session.StateCollectBasics, out.Session.State, st)
		assert.Equal(t, session.Data{}, out.Session.Data, st)
		assert.Equal(t, "What is your name?", firstText(out))
	}
}

func TestFreeFormDoneStartsParse(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectFreeForm, session.Data{})
	s.FileMode = session.FileModeAI

	s = step(t, m, s, textMsg("My name is Ram, the road in Hazratganj is broken")).Session
	out := step(t, m, s, textMsg("done"))
	assert.True(t, out.StartAIParse)
	assert.Equal(t, session.StateAIProcessing, out.Session.State)

	wait := step(t, m, out.Session, textMsg("hello?"))
	assert.False(t, wait.StartAIParse)
	assert.Equal(t, session.StateAIProcessing, wait.Session.State)
	assert.Equal(t, msgAIWorking, firstText(wait))
}

func TestPinWhileParsingOnlyWaits(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateAIProcessing, session.Data{})

	out := step(t, m, s, pinMsg(26.85, 80.95))
	assert.Equal(t, session.StateAIProcessing, out.Session.State)
	assert.False(t, out.Session.Data.Has(session.FieldLocation))
	assert.Equal(t, msgAIWorking, firstText(out))
}

func TestFreeFormBufferCap(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectFreeForm, session.Data{})
	s.FreeFormTextBuffer = strings.Repeat("x", FreeFormMax-2)

	out := step(t, m, s, textMsg("abc"))
	assert.Len(t, out.Session.FreeFormTextBuffer, FreeFormMax-2)
	assert.Contains(t, firstText(out), "very long")
}

func TestDoneIsTerminal(t *testing.T) {
	out := step(t, newMachine(&fakeCreator{}), sessionAt(session.StateDone, completeData()), textMsg("hello"))
	assert.Equal(t, msgDone, firstText(out))
}

func TestHandleIsDeterministicAndPure(t *testing.T) {
	m := newMachine(&fakeCreator{})
	s := sessionAt(session.StateCollectDescription, session.Data{})
	s.PendingDescriptionBuffer = "first part"
	before := s.Clone()

	a := step(t, m, s, textMsg("second part"))
	b := step(t, m, s, textMsg("second part"))

	assert.Equal(t, a.Replies, b.Replies)
	assert.Equal(t, a.Session, b.Session)
	assert.Equal(t, before, s, "input session is not mutated")
}
