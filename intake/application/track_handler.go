package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/sirupsen/logrus"
)

var referenceToken = regexp.MustCompile(`[A-Za-z0-9]{6,}`)

// TrackResult is the reply to a status lookup. Resolved ends the session.
type TrackResult struct {
	Reply    message.Reply
	Resolved bool
}

type TrackHandler struct {
	finder grievance.Finder
	now    func() time.Time
}

func NewTrackHandler(finder grievance.Finder) *TrackHandler {
	return &TrackHandler{finder: finder, now: time.Now}
}

// Handle looks up the first id-like token in text.
func (h *TrackHandler) Handle(ctx context.Context, text string) TrackResult {
	ref, ok := extractReference(text)
	if !ok {
		return TrackResult{Reply: message.TextReply(msgTrackPrompt)}
	}

	rec, err := h.finder.FindByReference(ctx, ref)
	switch {
	case errors.Is(err, grievance.ErrNotFound), errors.Is(err, grievance.ErrInvalidRef):
		return TrackResult{Reply: message.TextReply(fmt.Sprintf(msgTrackNotFound, ref)), Resolved: true}
	case err != nil:
		logrus.WithError(err).WithField("reference", ref).Error("[TRACK] Lookup failed")
		return TrackResult{Reply: message.TextReply(msgTrackUnavailable)}
	}

	return TrackResult{Reply: message.TextReply(h.format(rec)), Resolved: true}
}

func (h *TrackHandler) format(rec *grievance.Record) string {
	now := h.now()
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 *Grievance %s*\n\n", rec.ReferenceID)
	fmt.Fprintf(&b, "*Title:* %s\n", rec.Title)
	fmt.Fprintf(&b, "*Category:* %s\n", categoryLabel(rec.Category))
	if rec.District != "" {
		fmt.Fprintf(&b, "*District:* %s\n", rec.District)
	}
	fmt.Fprintf(&b, "*Status:* %s\n", rec.Status.Label())
	fmt.Fprintf(&b, "*Filed:* %s (%s)", rec.CreatedAt.Format("02 Jan 2006"), humanize.RelTime(rec.CreatedAt, now, "ago", "from now"))
	if !rec.UpdatedAt.IsZero() && rec.UpdatedAt.Sub(rec.CreatedAt) > time.Minute {
		fmt.Fprintf(&b, "\n*Last update:* %s", humanize.RelTime(rec.UpdatedAt, now, "ago", "from now"))
	}
	return b.String()
}

// extractReference returns the first token of six or more letters and
// digits that contains at least one digit.
func extractReference(text string) (string, bool) {
	for _, tok := range referenceToken.FindAllString(text, -1) {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return strings.ToUpper(tok), true
		}
	}
	return "", false
}
