package message

import (
	"strings"
	"time"
)

// Type tags the variant of an Inbound message.
type Type string

const (
	TypeText        Type = "text"
	TypeInteractive Type = "interactive"
	TypeImage       Type = "image"
	TypeDocument    Type = "document"
	TypeLocation    Type = "location"
	TypeUnknown     Type = "unknown"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Label is the human address of the pin, if any.
func (l Location) Label() string {
	switch {
	case l.Name != "" && l.Address != "":
		return l.Name + ", " + l.Address
	case l.Address != "":
		return l.Address
	default:
		return l.Name
	}
}

// Media references an image or document held by the messaging provider.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType"`
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Inbound is a normalized message from a citizen. Only the fields matching
// Type are set; an interactive reply carries the selected row id in Text,
// and a form submission carries its raw JSON in FlowResponse.
type Inbound struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	ContactName  string    `json:"contactName,omitempty"`
	Type         Type      `json:"type"`
	Text         string    `json:"text,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Media        *Media    `json:"media,omitempty"`
	FlowResponse string    `json:"flowResponse,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsMedia reports whether m carries an image or document.
func (m Inbound) IsMedia() bool {
	return (m.Type == TypeImage || m.Type == TypeDocument) && m.Media != nil && m.Media.ID != ""
}

// IsFlowSubmission reports whether m is a completed form.
func (m Inbound) IsFlowSubmission() bool {
	return m.Type == TypeInteractive && m.FlowResponse != ""
}

// Body is the trimmed text of m.
func (m Inbound) Body() string {
	return strings.TrimSpace(m.Text)
}

// Reply is one outbound message. Exactly one of Text, List or Flow is used;
// List and Flow fall back to Text on channels without interactive support.
type Reply struct {
	Text string `json:"text,omitempty"`
	List *List  `json:"list,omitempty"`
	Flow *Flow  `json:"flow,omitempty"`
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}

// PlainText renders r as text for logging and channels without interactive support.
func (r Reply) PlainText() string {
	switch {
	case r.List != nil:
		var b strings.Builder
		b.WriteString(r.List.Body)
		for _, s := range r.List.Sections {
			for _, row := range s.Rows {
				b.WriteString("\n")
				b.WriteString(row.ID)
				b.WriteString(". ")
				b.WriteString(row.Title)
			}
		}
		return b.String()
	case r.Flow != nil:
		return r.Flow.Body
	default:
		return r.Text
	}
}

type List struct {
	Header   string        `json:"header,omitempty"`
	Body     string        `json:"body"`
	Button   string        `json:"button"`
	Sections []ListSection `json:"sections"`
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Flow struct {
	FlowID    string `json:"flowId"`
	FlowToken string `json:"flowToken"`
	Body      string `json:"body"`
	CTA       string `json:"cta"`
	Screen    string `json:"screen,omitempty"`
}
