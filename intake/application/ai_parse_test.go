package application

import (
	"context"
	"testing"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/llm"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	out    string
	err    error
	prompt string
	system string
	opts   llm.Options
}

func (f *fakeCompleter) Complete(_ context.Context, userPrompt, systemPrompt string, opts llm.Options) (string, error) {
	f.prompt, f.system, f.opts = userPrompt, systemPrompt, opts
	return f.out, f.err
}

func newParseService(c *fakeCompleter) *AIParseService {
	return NewAIParseService(c, config.AIConfig{Provider: "openai", ConversationModel: "gpt-4o-mini", MaxTokens: 800, Temperature: 0.1})
}

func TestAIParseKeepsValidFields(t *testing.T) {
	c := &fakeCompleter{out: "```json\n" + `{
		"name": "Sita Devi",
		"email": "SITA@example.com",
		"phone": "98765 43210",
		"title": "No water supply for three days",
		"description": "There has been no municipal water supply in our lane for three days.",
		"category": "Water",
		"district": "Kanpur Nagar",
		"subdistrict": "",
		"area": "Kidwai Nagar",
		"location": "Near the temple",
		"latitude": "26.4499",
		"longitude": 80.3319
	}` + "\n```"}
	p := newParseService(c)

	res, err := p.Parse(context.Background(), "no water for 3 days", []string{"image/jpeg: photo.jpg"})
	require.NoError(t, err)

	d := res.Partial
	assert.Equal(t, "Sita Devi", d.Name)
	assert.Equal(t, "sita@example.com", d.Email)
	assert.Equal(t, "+919876543210", d.Phone)
	assert.Equal(t, "water", d.Category)
	assert.Equal(t, "Near the temple", d.Location)
	require.NotNil(t, d.Latitude)
	assert.InDelta(t, 26.4499, *d.Latitude, 1e-9)
	assert.Equal(t, []session.Field{session.FieldSubdistrict}, res.Missing)

	assert.True(t, c.opts.JSONMode)
	assert.Equal(t, "gpt-4o-mini", c.opts.Model)
	assert.Contains(t, c.prompt, "photo.jpg")
	assert.Equal(t, parseSystemPrompt, c.system)
}

func TestAIParseDropsInvalidFields(t *testing.T) {
	c := &fakeCompleter{out: `{"name": "R2D2", "email": "not-an-email", "category": "potholes",
		"phone": "12345", "description": "short", "latitude": 123, "longitude": 80}`}
	res, err := newParseService(c).Parse(context.Background(), "text", nil)
	require.NoError(t, err)

	assert.Equal(t, session.Data{}, res.Partial)
	assert.Equal(t, session.RequiredOrder, res.Missing)
}

func TestAIParseMalformedOutput(t *testing.T) {
	c := &fakeCompleter{out: "I'm sorry, I cannot help with that."}
	res, err := newParseService(c).Parse(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Equal(t, session.Data{}, res.Partial)
	assert.Equal(t, session.RequiredOrder, res.Missing)
}

func TestAIParseCompleterError(t *testing.T) {
	c := &fakeCompleter{err: llm.ErrNoResponse}
	_, err := newParseService(c).Parse(context.Background(), "text", nil)
	assert.ErrorIs(t, err, llm.ErrNoResponse)
}
