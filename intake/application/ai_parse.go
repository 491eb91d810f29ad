package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/llm"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
	"github.com/sirupsen/logrus"
)

const parseSystemPrompt = `You extract grievance details for an Indian public grievance office from a citizen's message.
Return ONLY a JSON object with these keys (use an empty string when a value is not clearly stated, never guess):
"name", "email", "phone", "title", "description", "category", "district", "subdistrict", "area", "location", "latitude", "longitude".
Rules:
- category must be one of: roads, water, electricity, documents, health, education.
- title is a short summary of at most 15 words.
- description restates the problem in full sentences using the citizen's details.
- phone is a 10-digit Indian mobile number.
- latitude and longitude are numbers only when the citizen typed coordinates.`

// ParseResult holds validated fields and the required fields still missing.
type ParseResult struct {
	Partial session.Data
	Missing []session.Field
}

// AIParseService turns free text into validated grievance fields.
type AIParseService struct {
	completer llm.Completer
	opts      llm.Options
	timeout   time.Duration
}

func NewAIParseService(completer llm.Completer, cfg config.AIConfig) *AIParseService {
	return &AIParseService{
		completer: completer,
		opts: llm.Options{
			Model:       cfg.AIModel(),
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			JSONMode:    true,
		},
		timeout: cfg.Timeout,
	}
}

// Parse calls the model once. A failed call is an error; unusable output is
// not, it yields an empty partial with every required field missing.
func (p *AIParseService) Parse(ctx context.Context, text string, documents []string) (ParseResult, error) {
	prompt := "Citizen message:\n" + text
	if len(documents) > 0 {
		prompt += "\n\nAttached files:\n- " + strings.Join(documents, "\n- ")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.completer.Complete(ctx, prompt, parseSystemPrompt, p.opts)
	if err != nil {
		return ParseResult{}, fmt.Errorf("ai parse failed: %w", err)
	}

	var extracted map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &extracted); err != nil {
		logrus.WithError(err).Warn("[AI_PARSE] Model returned malformed JSON, asking for every field")
		return ParseResult{Missing: append([]session.Field(nil), session.RequiredOrder...)}, nil
	}

	partial := validateExtracted(extracted)
	return ParseResult{Partial: partial, Missing: partial.Missing(session.RequiredOrder)}, nil
}

// validateExtracted keeps only the values that pass the field validators.
func validateExtracted(m map[string]any) session.Data {
	var d session.Data
	keep := func(key string, validate func(string) (string, error), set func(string)) {
		v := stringValue(m[key])
		if v == "" {
			return
		}
		if out, err := validate(v); err == nil {
			set(out)
		}
	}

	keep("name", validations.ValidateName, func(v string) { d.Name = v })
	keep("email", validations.ValidateEmail, func(v string) { d.Email = v })
	keep("phone", validations.ValidatePhone, func(v string) { d.Phone = v })
	keep("title", validations.ValidateTitle, func(v string) { d.Title = v })
	keep("description", validations.ValidateDescription, func(v string) { d.Description = v })
	keep("category", validations.ValidateCategory, func(v string) { d.Category = v })
	keep("district", validations.ValidateDistrict, func(v string) { d.District = v })
	keep("subdistrict", validations.ValidateSubdistrict, func(v string) { d.Subdistrict = v })
	keep("area", validations.ValidateArea, func(v string) { d.Area = v })
	keep("location", validations.ValidateLocationText, func(v string) { d.Location = v })

	lat, latOK := floatValue(m["latitude"])
	long, longOK := floatValue(m["longitude"])
	if latOK && longOK && validations.ValidateLatitude(lat) == nil && validations.ValidateLongitude(long) == nil {
		d.SetCoordinates(lat, long, "")
	}
	return d
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
