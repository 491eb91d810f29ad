package meta

import (
	"strconv"
	"strings"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
)

// WebhookPayload is the body Meta POSTs to the webhook.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []WebhookMessage `json:"messages"`
	Statuses         []WebhookStatus  `json:"statuses"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

type WebhookMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *WebhookText        `json:"text,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
	Button      *WebhookButton      `json:"button,omitempty"`
	Image       *WebhookMedia       `json:"image,omitempty"`
	Document    *WebhookMedia       `json:"document,omitempty"`
	Location    *WebhookLocation    `json:"location,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookInteractive struct {
	Type        string        `json:"type"`
	ListReply   *WebhookReply `json:"list_reply,omitempty"`
	ButtonReply *WebhookReply `json:"button_reply,omitempty"`
	NfmReply    *WebhookNfm   `json:"nfm_reply,omitempty"`
}

type WebhookReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type WebhookNfm struct {
	Name         string `json:"name"`
	Body         string `json:"body"`
	ResponseJSON string `json:"response_json"`
}

type WebhookButton struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

type WebhookLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

// Normalize flattens a delivery into inbound messages. Status callbacks
// are only counted.
func Normalize(p WebhookPayload) (msgs []message.Inbound, statuses int) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			statuses += len(change.Value.Statuses)

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				in := normalizeMessage(m)
				in.ContactName = names[m.From]
				msgs = append(msgs, in)
			}
		}
	}
	return msgs, statuses
}

func normalizeMessage(m WebhookMessage) message.Inbound {
	in := message.Inbound{
		ID:        m.ID,
		From:      m.From,
		Type:      message.TypeUnknown,
		Timestamp: parseTimestamp(m.Timestamp),
	}

	switch m.Type {
	case "text":
		if m.Text != nil {
			in.Type = message.TypeText
			in.Text = m.Text.Body
		}
	case "interactive":
		if m.Interactive == nil {
			break
		}
		switch {
		case m.Interactive.ListReply != nil:
			in.Type = message.TypeInteractive
			in.Text = m.Interactive.ListReply.ID
		case m.Interactive.ButtonReply != nil:
			in.Type = message.TypeInteractive
			in.Text = m.Interactive.ButtonReply.ID
		case m.Interactive.NfmReply != nil && strings.TrimSpace(m.Interactive.NfmReply.ResponseJSON) != "":
			in.Type = message.TypeInteractive
			in.FlowResponse = m.Interactive.NfmReply.ResponseJSON
		}
	case "button":
		if m.Button != nil {
			in.Type = message.TypeInteractive
			in.Text = firstNonEmpty(m.Button.Payload, m.Button.Text)
		}
	case "image":
		if m.Image != nil && m.Image.ID != "" {
			in.Type = message.TypeImage
			in.Media = toMedia(m.Image)
			in.Text = m.Image.Caption
		}
	case "document":
		if m.Document != nil && m.Document.ID != "" {
			in.Type = message.TypeDocument
			in.Media = toMedia(m.Document)
			in.Text = m.Document.Caption
		}
	case "location":
		if m.Location != nil {
			in.Type = message.TypeLocation
			in.Location = &message.Location{
				Latitude:  m.Location.Latitude,
				Longitude: m.Location.Longitude,
				Name:      m.Location.Name,
				Address:   m.Location.Address,
			}
		}
	}
	return in
}

func toMedia(m *WebhookMedia) *message.Media {
	return &message.Media{
		ID:       m.ID,
		MimeType: m.MimeType,
		Caption:  m.Caption,
		FileName: m.Filename,
	}
}

func parseTimestamp(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
