package application

import (
	"fmt"
	"strings"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
)

const (
	msgWelcome     = "🙏 Namaste! Welcome to the public grievance helpline.\n\nWhat would you like to do?"
	msgWelcomeBack = "👋 Welcome back! Your previous conversation was inactive for a while, so we have started fresh.\n\nWhat would you like to do?"
	msgIntentRetry = "Sorry, I did not understand that. Please reply 1, 2 or 3."
	msgGoodbye     = "Thank you for reaching out. If you need anything later, just send us a message. 🙏"
	msgCancelled   = "❌ Your current request has been cancelled. Nothing was submitted."
	msgRateLimited = "⏳ You are sending messages too quickly. Please wait a minute and try again."
	msgGeneric     = "⚠️ Something went wrong on our side. Please try again, or send *cancel* to start over."

	msgFileMode      = "How would you like to file your grievance?"
	msgFileModeRetry = "Please choose one of the options above."
	msgFlowBody      = "Tap the button below to open the grievance form. Fill in all the details and submit it from inside WhatsApp."

	msgDescriptionPrompt = "📝 Please describe the problem in detail. You can send several messages and photos or documents.\n\nWhen you have finished, send *done*."
	msgDescriptionMore   = "Noted. Add more details, or send *done* when finished."
	msgDescriptionLong   = "That would make the description longer than %d characters. Please send *done* or shorten your text."

	msgPhonePrompt = "📞 Which mobile number should officials call you on?\n\nType a 10-digit mobile number, send *same* to use this WhatsApp number, or *skip*."
	msgPhoneSender = "This WhatsApp number is not an Indian mobile number. Please type a 10-digit mobile number, or send *skip*."

	msgMediaPrompt   = "📎 You can now send photos or documents (PDF, Word) as evidence.\n\nSend *done* when finished, or *skip* if you have none."
	msgMediaReceived = "✅ Attachment received (%d so far). Send more, or *done* when finished."
	msgMediaDup      = "You already sent this attachment. Send another one, or *done* when finished."
	msgMediaHere     = "📎 Attachments can be added after the description step. Let's continue first."

	msgFreeFormPrompt = "🤖 Tell us about your problem in your own words. Include your name, email, what happened, the category, and where it is (district, subdistrict, area). You may send several messages, photos or documents, and share a location pin.\n\nSend *done* when finished."
	msgFreeFormMore   = "Noted. Keep going, or send *done* when finished."
	msgFreeFormLong   = "Your message is getting very long (limit %d characters). Please send *done* to continue."
	msgFreeFormShort  = "Please tell us a little more about the problem (at least %d characters) or attach a photo or document before sending *done*."
	msgAIProcessing   = "⏳ We are reading your message. Please wait a moment..."
	msgAIWorking      = "⏳ Still working on your message. Please wait, we will reply shortly."
	msgAITimedOut     = "Sorry, reading your message took too long. Send *done* to try again, or add more details first."
	msgAIFailed       = "Sorry, we could not process your message right now. Send *done* to try again, or add more details first."

	msgLocationSaved = "📍 Location saved."

	msgConfirmFooter = "Reply *yes* to submit, or *edit <field>* to change something (for example *edit email*)."
	msgConfirmRetry  = "Please reply *yes* to submit, or *edit <field>* to change something."
	msgEditWhich     = "Which field would you like to change? Reply *edit* followed by one of: name, email, phone, title, category, district, subdistrict, area, location, description."
	msgSubmitFailed  = "⚠️ We could not submit your grievance just now. Your details are saved, please reply *yes* to try again."
	msgSubmitted     = "✅ Your grievance has been registered.\n\nReference ID: *%s*\n\nPlease keep this ID to track the status of your complaint."
	msgDone          = "Your grievance has already been submitted. Send any message to start a new request."
	msgMissingBefore = "A few details are still missing before we can submit."

	msgTrackPrompt      = "🔎 Please send your grievance reference ID (for example 31012026MLA002)."
	msgTrackNotFound    = "No complaint found with reference ID *%s*. Please check the ID and try again."
	msgTrackUnavailable = "We could not look up your grievance right now. Please try again in a few minutes."

	msgFlowInvalid = "⚠️ Some details in the form were not valid:\n%s\n\nPlease open the form again and correct them."
)

// Media ingestion failures.
const (
	msgMediaUnsupported = "⚠️ This file type is not supported. Please send a photo (JPG, PNG, WEBP) or a document (PDF, Word)."
	msgMediaTooLarge    = "⚠️ This file is too large. Photos can be up to %s and documents up to %s."
	msgMediaUnavailable = "⚠️ Attachments cannot be accepted at the moment. You can continue without them."
	msgMediaFailed      = "⚠️ We could not save your attachment. Please send it again."
)

// Row ids of the menus equal the typed options so taps and text share a path.
func intentMenu(body string) message.Reply {
	return message.Reply{List: &message.List{
		Body:   body,
		Button: "Choose an option",
		Sections: []message.ListSection{{
			Title: "Options",
			Rows: []message.ListRow{
				{ID: "1", Title: "File a grievance", Description: "Register a new complaint"},
				{ID: "2", Title: "Track a grievance", Description: "Check the status with your reference ID"},
				{ID: "3", Title: "Something else", Description: "End this conversation"},
			},
		}},
	}}
}

func fileModeMenu(flowEnabled bool) message.Reply {
	rows := []message.ListRow{
		{ID: "a", Title: "In my own words", Description: "Describe everything at once, we fill in the form"},
		{ID: "b", Title: "Step by step", Description: "Answer one question at a time"},
	}
	if flowEnabled {
		rows = append(rows, message.ListRow{ID: "c", Title: "Fill a form", Description: "Open the grievance form inside WhatsApp"})
	}
	return message.Reply{List: &message.List{
		Body:     msgFileMode,
		Button:   "Choose a mode",
		Sections: []message.ListSection{{Title: "Filing mode", Rows: rows}},
	}}
}

func categoryMenu(body string) message.Reply {
	rows := make([]message.ListRow, len(grievance.Categories))
	for i, c := range grievance.Categories {
		rows[i] = message.ListRow{ID: string(c), Title: categoryLabel(c)}
	}
	return message.Reply{List: &message.List{
		Body:     body,
		Button:   "Choose category",
		Sections: []message.ListSection{{Title: "Departments", Rows: rows}},
	}}
}

func categoryLabel(c grievance.Category) string {
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// withError prefixes a validation message to a prompt.
func withError(err error, prompt message.Reply) message.Reply {
	text := "⚠️ " + err.Error()
	switch {
	case prompt.List != nil:
		l := *prompt.List
		l.Body = text + "\n\n" + l.Body
		prompt.List = &l
		return prompt
	default:
		return message.TextReply(text + "\n\n" + prompt.Text)
	}
}

func prefixed(prefix string, r message.Reply) message.Reply {
	if r.List != nil {
		l := *r.List
		l.Body = prefix + "\n\n" + l.Body
		r.List = &l
		return r
	}
	return message.TextReply(prefix + "\n\n" + r.Text)
}

func summary(d session.Data) string {
	var b strings.Builder
	b.WriteString("📋 *Please review your grievance*\n\n")
	line := func(label, value string) {
		if value == "" {
			value = "(not provided)"
		}
		fmt.Fprintf(&b, "*%s:* %s\n", label, value)
	}
	line("Name", d.Name)
	line("Email", d.Email)
	line("Phone", d.Phone)
	line("Title", d.Title)
	line("Category", categoryLabel(grievance.Category(d.Category)))
	line("District", d.District)
	line("Subdistrict", d.Subdistrict)
	line("Area", d.Area)
	line("Location", locationText(d))
	line("Description", clip(d.Description, 300))
	fmt.Fprintf(&b, "*Attachments:* %d\n", len(d.Attachments))
	b.WriteString("\n")
	b.WriteString(msgConfirmFooter)
	return b.String()
}

func locationText(d session.Data) string {
	if d.Latitude == nil || d.Longitude == nil {
		return d.Location
	}
	coords := fmt.Sprintf("%.5f, %.5f", *d.Latitude, *d.Longitude)
	if d.Location == "" {
		return coords
	}
	return d.Location + " (" + coords + ")"
}

// missingSummary lists what was understood and what is still needed.
func missingSummary(d session.Data, missing []session.Field) string {
	var have, need []string
	for _, f := range session.RequiredOrder {
		if d.Has(f) {
			have = append(have, fieldByName[f].label)
		}
	}
	for _, f := range missing {
		need = append(need, fieldByName[f].label)
	}

	var b strings.Builder
	if len(have) > 0 {
		b.WriteString("✅ We got: " + strings.Join(have, ", ") + "\n")
	}
	b.WriteString("❓ We still need: " + strings.Join(need, ", "))
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func descriptionTooLong() string {
	return fmt.Sprintf(msgDescriptionLong, validations.DescriptionMax)
}
