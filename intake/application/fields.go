package application

import (
	"strings"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/validations"
)

// fieldSpec describes how one slot is prompted for and filled.
type fieldSpec struct {
	field    session.Field
	label    string
	prompt   string
	keywords []string
	apply    func(d *session.Data, msg message.Inbound) error
}

var fields = []fieldSpec{
	{
		field:    session.FieldName,
		label:    "name",
		prompt:   "What is your name?",
		keywords: []string{"name", "naam"},
		apply: textField(validations.ValidateName, func(d *session.Data, v string) {
			d.Name = v
		}),
	},
	{
		field:    session.FieldEmail,
		label:    "email",
		prompt:   "What is your email address?",
		keywords: []string{"email", "mail", "e-mail"},
		apply: textField(validations.ValidateEmail, func(d *session.Data, v string) {
			d.Email = v
		}),
	},
	{
		field:    session.FieldPhone,
		label:    "phone",
		prompt:   msgPhonePrompt,
		keywords: []string{"phone", "mobile", "number", "contact"},
		apply:    applyPhone,
	},
	{
		field:    session.FieldTitle,
		label:    "title",
		prompt:   "Give your grievance a short title (for example: Broken street light near school).",
		keywords: []string{"title", "subject", "heading"},
		apply: textField(validations.ValidateTitle, func(d *session.Data, v string) {
			d.Title = v
		}),
	},
	{
		field:    session.FieldCategory,
		label:    "category",
		prompt:   "Which department does this concern? Choose one: roads, water, electricity, documents, health, education.",
		keywords: []string{"category", "department", "type"},
		apply: textField(validations.ValidateCategory, func(d *session.Data, v string) {
			d.Category = v
		}),
	},
	{
		field:    session.FieldDistrict,
		label:    "district",
		prompt:   "Which district is the problem in?",
		keywords: []string{"district", "zila", "jila"},
		apply: textField(validations.ValidateDistrict, func(d *session.Data, v string) {
			d.District = v
		}),
	},
	{
		field:    session.FieldSubdistrict,
		label:    "subdistrict",
		prompt:   "Which subdistrict (tehsil or block)?",
		keywords: []string{"subdistrict", "sub-district", "tehsil", "block"},
		apply: textField(validations.ValidateSubdistrict, func(d *session.Data, v string) {
			d.Subdistrict = v
		}),
	},
	{
		field:    session.FieldArea,
		label:    "area",
		prompt:   "Which area, village or locality?",
		keywords: []string{"area", "locality", "village", "ward"},
		apply: textField(validations.ValidateArea, func(d *session.Data, v string) {
			d.Area = v
		}),
	},
	{
		field:    session.FieldLocation,
		label:    "location",
		prompt:   "📍 Please share the exact location: tap 📎 then *Location* to send a pin, or type the coordinates like 26.8467, 80.9462.",
		keywords: []string{"location", "coordinates", "pin", "map"},
		apply:    applyLocation,
	},
	{
		field:    session.FieldDescription,
		label:    "description",
		prompt:   "📝 Please describe the problem in detail (at least 20 characters).",
		keywords: []string{"description", "details", "desc", "complaint"},
		apply: textField(validations.ValidateDescription, func(d *session.Data, v string) {
			d.Description = v
		}),
	},
}

var fieldByName = func() map[session.Field]fieldSpec {
	m := make(map[session.Field]fieldSpec, len(fields))
	for _, f := range fields {
		m[f.field] = f
	}
	return m
}()

func textField(validate func(string) (string, error), set func(*session.Data, string)) func(*session.Data, message.Inbound) error {
	return func(d *session.Data, msg message.Inbound) error {
		v, err := validate(msg.Body())
		if err != nil {
			return err
		}
		set(d, v)
		return nil
	}
}

var currentNumberKeywords = []string{"same", "current", "use current", "this number", "same number"}

func applyPhone(d *session.Data, msg message.Inbound) error {
	text := strings.ToLower(msg.Body())
	if text == "skip" {
		d.Phone = ""
		return nil
	}
	for _, k := range currentNumberKeywords {
		if text == k {
			phone, err := validations.ValidatePhone(msg.From)
			if err != nil {
				return pkgError.ValidationError(msgPhoneSender)
			}
			d.Phone = phone
			return nil
		}
	}
	phone, err := validations.ValidatePhone(msg.Body())
	if err != nil {
		return err
	}
	d.Phone = phone
	return nil
}

func applyLocation(d *session.Data, msg message.Inbound) error {
	if msg.Type == message.TypeLocation && msg.Location != nil {
		return applyPin(d, *msg.Location)
	}
	lat, long, err := validations.ParseCoordinates(msg.Body())
	if err != nil {
		return err
	}
	d.SetCoordinates(lat, long, "")
	return nil
}

func applyPin(d *session.Data, loc message.Location) error {
	if err := validations.ValidateLatitude(loc.Latitude); err != nil {
		return err
	}
	if err := validations.ValidateLongitude(loc.Longitude); err != nil {
		return err
	}
	address, err := validations.ValidateLocationText(loc.Label())
	if err != nil {
		address = clip(loc.Label(), validations.LocationMax)
	}
	d.SetCoordinates(loc.Latitude, loc.Longitude, address)
	return nil
}

func promptFor(f session.Field) message.Reply {
	def := fieldByName[f]
	if f == session.FieldCategory {
		return categoryMenu(def.prompt)
	}
	return message.TextReply(def.prompt)
}

// matchEditField resolves the word after "edit": exact keyword, then
// prefix, then one typo.
func matchEditField(word string) (session.Field, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", false
	}
	for _, f := range fields {
		for _, k := range f.keywords {
			if word == k {
				return f.field, true
			}
		}
	}
	if len(word) >= 3 {
		for _, f := range fields {
			for _, k := range f.keywords {
				if strings.HasPrefix(k, word) {
					return f.field, true
				}
			}
		}
	}
	if len(word) >= 4 {
		for _, f := range fields {
			for _, k := range f.keywords {
				if levenshtein(word, k) <= 1 {
					return f.field, true
				}
			}
		}
	}
	return "", false
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
