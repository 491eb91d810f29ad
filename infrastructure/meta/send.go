package meta

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
)

// Graph API length limits for interactive lists.
const (
	maxBodyLen     = 1024
	maxButtonLen   = 20
	maxRowTitleLen = 24
	maxRowDescLen  = 72
	maxHeaderLen   = 60
)

type outboundMessage struct {
	MessagingProduct string               `json:"messaging_product"`
	RecipientType    string               `json:"recipient_type"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Text             *outboundText        `json:"text,omitempty"`
	Interactive      *outboundInteractive `json:"interactive,omitempty"`
}

type outboundText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type outboundInteractive struct {
	Type   string          `json:"type"`
	Header *outboundHeader `json:"header,omitempty"`
	Body   outboundBody    `json:"body"`
	Action outboundAction  `json:"action"`
}

type outboundHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundBody struct {
	Text string `json:"text"`
}

type outboundAction struct {
	Button     string            `json:"button,omitempty"`
	Sections   []outboundSection `json:"sections,omitempty"`
	Name       string            `json:"name,omitempty"`
	Parameters *flowParameters   `json:"parameters,omitempty"`
}

type outboundSection struct {
	Title string        `json:"title,omitempty"`
	Rows  []outboundRow `json:"rows"`
}

type outboundRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type flowParameters struct {
	FlowMessageVersion string             `json:"flow_message_version"`
	FlowToken          string             `json:"flow_token"`
	FlowID             string             `json:"flow_id"`
	FlowCTA            string             `json:"flow_cta"`
	FlowAction         string             `json:"flow_action"`
	FlowActionPayload  *flowActionPayload `json:"flow_action_payload,omitempty"`
}

type flowActionPayload struct {
	Screen string `json:"screen"`
}

// Send delivers r to the WhatsApp user to.
func (c *Client) Send(ctx context.Context, to string, r message.Reply) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	msg := buildOutbound(strings.TrimPrefix(to, "+"), r)
	url := c.endpoint(c.phoneNumberID, "messages")
	return c.withRetry(ctx, "send "+msg.Type, func() error {
		return c.jsonRequest(ctx, http.MethodPost, url, msg, nil)
	})
}

func buildOutbound(to string, r message.Reply) outboundMessage {
	msg := outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
	}

	switch {
	case r.Flow != nil:
		msg.Type = "interactive"
		action := outboundAction{
			Name: "flow",
			Parameters: &flowParameters{
				FlowMessageVersion: "3",
				FlowToken:          r.Flow.FlowToken,
				FlowID:             r.Flow.FlowID,
				FlowCTA:            truncate(r.Flow.CTA, maxButtonLen),
				FlowAction:         "navigate",
			},
		}
		if r.Flow.Screen != "" {
			action.Parameters.FlowActionPayload = &flowActionPayload{Screen: r.Flow.Screen}
		}
		msg.Interactive = &outboundInteractive{
			Type:   "flow",
			Body:   outboundBody{Text: truncate(r.Flow.Body, maxBodyLen)},
			Action: action,
		}
	case r.List != nil:
		msg.Type = "interactive"
		sections := make([]outboundSection, 0, len(r.List.Sections))
		for _, s := range r.List.Sections {
			rows := make([]outboundRow, 0, len(s.Rows))
			for _, row := range s.Rows {
				rows = append(rows, outboundRow{
					ID:          row.ID,
					Title:       truncate(row.Title, maxRowTitleLen),
					Description: truncate(row.Description, maxRowDescLen),
				})
			}
			sections = append(sections, outboundSection{Title: truncate(s.Title, maxRowTitleLen), Rows: rows})
		}
		in := &outboundInteractive{
			Type: "list",
			Body: outboundBody{Text: truncate(r.List.Body, maxBodyLen)},
			Action: outboundAction{
				Button:   truncate(r.List.Button, maxButtonLen),
				Sections: sections,
			},
		}
		if r.List.Header != "" {
			in.Header = &outboundHeader{Type: "text", Text: truncate(r.List.Header, maxHeaderLen)}
		}
		msg.Interactive = in
	default:
		msg.Type = "text"
		msg.Text = &outboundText{Body: r.Text}
	}
	return msg
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
