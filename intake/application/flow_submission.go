package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/metrics"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
	"github.com/sirupsen/logrus"
)

// FlowSubmissionHandler creates a grievance straight from a completed
// WhatsApp form. It never touches the chat session.
type FlowSubmissionHandler struct {
	creator grievance.Creator
	metrics *metrics.Metrics
}

func NewFlowSubmissionHandler(creator grievance.Creator, m *metrics.Metrics) *FlowSubmissionHandler {
	return &FlowSubmissionHandler{creator: creator, metrics: m}
}

func (h *FlowSubmissionHandler) Handle(ctx context.Context, msg message.Inbound) message.Reply {
	log := logrus.WithFields(logrus.Fields{"user": msg.From, "message_id": msg.ID})

	var form map[string]any
	if err := json.Unmarshal([]byte(msg.FlowResponse), &form); err != nil {
		log.WithError(err).Warn("[FLOW] Unreadable form submission")
		return message.TextReply(fmt.Sprintf(msgFlowInvalid, "- the form could not be read"))
	}

	g, problems := grievanceFromForm(form, msg.From)
	if len(problems) > 0 {
		return message.TextReply(fmt.Sprintf(msgFlowInvalid, "- "+strings.Join(problems, "\n- ")))
	}
	if err := validations.ValidateGrievance(ctx, g); err != nil {
		return message.TextReply(fmt.Sprintf(msgFlowInvalid, "- "+err.Error()))
	}

	created, err := h.creator.Create(ctx, g)
	if err != nil {
		log.WithError(err).Error("[FLOW] Failed to create grievance")
		return message.TextReply("⚠️ We could not submit your form just now. Please try submitting it again in a few minutes.")
	}

	h.metrics.IncGrievance(string(grievance.SourceWhatsAppFlow))
	log.WithField("reference", created.ReferenceID).Info("[FLOW] Grievance submitted from form")
	return message.TextReply(fmt.Sprintf(msgSubmitted, created.ReferenceID))
}

func grievanceFromForm(form map[string]any, from string) (grievance.Grievance, []string) {
	var (
		g        = grievance.Grievance{Source: grievance.SourceWhatsAppFlow, WhatsAppNumber: from}
		problems []string
	)
	field := func(key string, validate func(string) (string, error), set func(string), required bool) {
		v := stringValue(form[key])
		if v == "" {
			if required {
				problems = append(problems, key+" is required")
			}
			return
		}
		out, err := validate(v)
		if err != nil {
			problems = append(problems, err.Error())
			return
		}
		set(out)
	}

	field("name", validations.ValidateName, func(v string) { g.Name = v }, true)
	field("email", validations.ValidateEmail, func(v string) { g.Email = v }, true)
	field("phone", validations.ValidatePhone, func(v string) { g.Phone = v }, false)
	field("title", validations.ValidateTitle, func(v string) { g.Title = v }, true)
	field("description", validations.ValidateDescription, func(v string) { g.Description = v }, true)
	field("category", validations.ValidateCategory, func(v string) { g.Category = grievance.Category(v) }, true)
	field("district", validations.ValidateDistrict, func(v string) { g.District = v }, true)
	field("subdistrict", validations.ValidateSubdistrict, func(v string) { g.Subdistrict = v }, true)
	field("area", validations.ValidateArea, func(v string) { g.Area = v }, true)
	field("location", validations.ValidateLocationText, func(v string) { g.Location = v }, false)

	if g.Phone == "" {
		if phone, err := validations.ValidatePhone(from); err == nil {
			g.Phone = phone
		}
	}

	lat, latOK := floatValue(form["latitude"])
	long, longOK := floatValue(form["longitude"])
	if latOK && longOK {
		g.Latitude, g.Longitude = &lat, &long
	} else if latOK != longOK {
		problems = append(problems, "latitude and longitude must be provided together")
	}
	return g, problems
}
