package application

import (
	"context"
	"testing"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aiJobFixture struct {
	job    *AIParseJob
	store  *mapStore
	parser *fakeParser
	sender *fakeSender
}

func newAIJobFixture() *aiJobFixture {
	f := &aiJobFixture{store: newMapStore(), parser: &fakeParser{}, sender: &fakeSender{}}
	f.job = NewAIParseJob(f.store, repository.NewMemoryLocker(time.Second), f.parser, f.sender, nil)
	return f
}

func (f *aiJobFixture) park(d session.Data, text string) *session.Session {
	s := sessionAt(session.StateAIProcessing, d)
	s.FileMode = session.FileModeAI
	s.FreeFormTextBuffer = text
	s.AIRequestedAt = testNow
	f.store.Set(context.Background(), s)
	return s
}

func TestAIJobCompleteGoesToConfirm(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "long complaint text")
	full := completeData()
	full.Phone = ""
	f.parser.result = ParseResult{Partial: full}

	require.NoError(t, f.job.Run(context.Background(), testUser))

	s := f.store.Get(context.Background(), testUser)
	assert.Equal(t, session.StateConfirm, s.State)
	assert.Equal(t, "+919876543210", s.Data.Phone, "phone defaults to the sender")
	assert.Empty(t, s.FreeFormTextBuffer)
	assert.True(t, s.AIRequestedAt.IsZero())
	assert.Equal(t, []string{"long complaint text"}, f.parser.texts)
	require.Len(t, f.sender.texts(), 1)
	assert.Contains(t, f.sender.texts()[0], "Ram Kumar")
}

func TestAIJobPartialGoesToFillMissing(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "text")
	f.parser.result = ParseResult{Partial: session.Data{Name: "Ram Kumar", Category: "roads"}}

	require.NoError(t, f.job.Run(context.Background(), testUser))

	s := f.store.Get(context.Background(), testUser)
	assert.Equal(t, session.StateFillMissing, s.State)
	require.NotEmpty(t, s.PendingMissingFields)
	assert.Equal(t, session.FieldEmail, s.PendingMissingFields[0])
	assert.NotContains(t, s.PendingMissingFields, session.FieldName)
	assert.NotContains(t, s.PendingMissingFields, session.FieldCategory)
	assert.Contains(t, f.sender.texts()[0], "What is your email address?")
}

func TestAIJobPinBeatsModelLocation(t *testing.T) {
	f := newAIJobFixture()
	d := session.Data{}
	d.SetCoordinates(26.85, 80.95, "Hazratganj, Lucknow")
	f.park(d, "text")
	parsed := completeData()
	parsed.Location = "somewhere else"
	f.parser.result = ParseResult{Partial: parsed}

	require.NoError(t, f.job.Run(context.Background(), testUser))

	s := f.store.Get(context.Background(), testUser)
	assert.Equal(t, "Hazratganj, Lucknow", s.Data.Location)
	assert.InDelta(t, 26.85, *s.Data.Latitude, 1e-9)
}

func TestAIJobAbortsWhenStateChanged(t *testing.T) {
	f := newAIJobFixture()
	f.store.Set(context.Background(), sessionAt(session.StateCollectFreeForm, session.Data{}))

	require.NoError(t, f.job.Run(context.Background(), testUser))
	assert.Zero(t, f.parser.calls)
	assert.Empty(t, f.sender.texts())
}

func TestAIJobDiscardsResultAfterRace(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "text")
	f.parser.result = ParseResult{Partial: completeData()}
	f.parser.before = func() {
		// The citizen cancels and starts over while the model runs.
		f.store.Set(context.Background(), sessionAt(session.StateCollectBasics, session.Data{}))
	}

	require.NoError(t, f.job.Run(context.Background(), testUser))
	assert.Equal(t, session.StateCollectBasics, f.store.Get(context.Background(), testUser).State)
	assert.Empty(t, f.sender.texts())
}

func TestAIJobParseFailureReverts(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "text")
	f.parser.err = errBoom

	require.NoError(t, f.job.Run(context.Background(), testUser))

	s := f.store.Get(context.Background(), testUser)
	assert.Equal(t, session.StateCollectFreeForm, s.State)
	assert.Equal(t, "text", s.FreeFormTextBuffer, "the buffer survives for a retry")
	assert.Equal(t, []string{msgAIFailed}, f.sender.texts())
}

func TestAIJobSendFailureReverts(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "text")
	f.parser.result = ParseResult{Partial: completeData()}
	f.sender.err = errBoom

	require.NoError(t, f.job.Run(context.Background(), testUser))
	assert.Equal(t, session.StateCollectFreeForm, f.store.Get(context.Background(), testUser).State)
}

func TestAIJobRevert(t *testing.T) {
	f := newAIJobFixture()
	f.park(session.Data{}, "text")

	f.job.Revert(context.Background(), testUser, msgAIFailed)
	assert.Equal(t, session.StateCollectFreeForm, f.store.Get(context.Background(), testUser).State)
	assert.Equal(t, []string{msgAIFailed}, f.sender.texts())

	f.job.Revert(context.Background(), testUser, msgAIFailed)
	assert.Len(t, f.sender.texts(), 1, "only a parked session is reverted")
}
