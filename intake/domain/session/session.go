package session

import (
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
)

// State is a position in the intake conversation.
type State string

const (
	StateStart              State = "START"
	StateCollectFileMode    State = "COLLECT_FILE_MODE"
	StateCollectBasics      State = "COLLECT_BASICS"
	StateCollectDescription State = "COLLECT_DESCRIPTION"
	StateCollectPhone       State = "COLLECT_PHONE"
	StateCollectMedia       State = "COLLECT_MEDIA"
	StateCollectFreeForm    State = "COLLECT_FREE_FORM"
	StateAIProcessing       State = "AI_PROCESSING"
	StateFillMissing        State = "FILL_MISSING"
	StateConfirm            State = "CONFIRM"
	StateEditField          State = "EDIT_FIELD"
	StateDone               State = "DONE"
)

type Intent string

const (
	IntentFile  Intent = "file"
	IntentTrack Intent = "track"
	IntentOther Intent = "other"
)

type FileMode string

const (
	FileModeStep FileMode = "step"
	FileModeAI   FileMode = "ai"
)

// Field names one collectable slot of Data. FieldLocation covers latitude,
// longitude and the address text together.
type Field string

const (
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldDistrict    Field = "district"
	FieldSubdistrict Field = "subdistrict"
	FieldArea        Field = "area"
	FieldLocation    Field = "location"
)

// BasicsOrder is the step-mode collection order.
var BasicsOrder = []Field{
	FieldName,
	FieldEmail,
	FieldTitle,
	FieldCategory,
	FieldDistrict,
	FieldSubdistrict,
	FieldArea,
	FieldLocation,
}

// RequiredOrder lists every field a submission needs, in prompting order.
var RequiredOrder = []Field{
	FieldName,
	FieldEmail,
	FieldTitle,
	FieldCategory,
	FieldDistrict,
	FieldSubdistrict,
	FieldArea,
	FieldLocation,
	FieldDescription,
}

// Data is the partially filled grievance carried by a session.
type Data struct {
	Name        string                 `json:"name,omitempty"`
	Email       string                 `json:"email,omitempty"`
	Phone       string                 `json:"phone,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	District    string                 `json:"district,omitempty"`
	Subdistrict string                 `json:"subdistrict,omitempty"`
	Area        string                 `json:"area,omitempty"`
	Location    string                 `json:"location,omitempty"`
	Latitude    *float64               `json:"latitude,omitempty"`
	Longitude   *float64               `json:"longitude,omitempty"`
	Attachments []grievance.Attachment `json:"attachments,omitempty"`
}

// Has reports whether f is filled.
func (d *Data) Has(f Field) bool {
	switch f {
	case FieldName:
		return d.Name != ""
	case FieldEmail:
		return d.Email != ""
	case FieldPhone:
		return d.Phone != ""
	case FieldTitle:
		return d.Title != ""
	case FieldDescription:
		return d.Description != ""
	case FieldCategory:
		return d.Category != ""
	case FieldDistrict:
		return d.District != ""
	case FieldSubdistrict:
		return d.Subdistrict != ""
	case FieldArea:
		return d.Area != ""
	case FieldLocation:
		return d.Latitude != nil && d.Longitude != nil
	}
	return false
}

// Clear blanks f.
func (d *Data) Clear(f Field) {
	switch f {
	case FieldName:
		d.Name = ""
	case FieldEmail:
		d.Email = ""
	case FieldPhone:
		d.Phone = ""
	case FieldTitle:
		d.Title = ""
	case FieldDescription:
		d.Description = ""
	case FieldCategory:
		d.Category = ""
	case FieldDistrict:
		d.District = ""
	case FieldSubdistrict:
		d.Subdistrict = ""
	case FieldArea:
		d.Area = ""
	case FieldLocation:
		d.Location = ""
		d.Latitude = nil
		d.Longitude = nil
	}
}

// SetCoordinates fills the location slot atomically.
func (d *Data) SetCoordinates(lat, long float64, address string) {
	d.Latitude = &lat
	d.Longitude = &long
	if address != "" {
		d.Location = address
	}
}

// FirstMissing returns the first unfilled field of order.
func (d *Data) FirstMissing(order []Field) (Field, bool) {
	for _, f := range order {
		if !d.Has(f) {
			return f, true
		}
	}
	return "", false
}

// Missing returns every unfilled field of order, preserving its order.
func (d *Data) Missing(order []Field) []Field {
	var out []Field
	for _, f := range order {
		if !d.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// HasMedia reports whether an attachment with mediaID is already present.
func (d *Data) HasMedia(mediaID string) bool {
	if mediaID == "" {
		return false
	}
	for _, a := range d.Attachments {
		if a.MediaID == mediaID {
			return true
		}
	}
	return false
}

// AddAttachment appends a unless its media id is already attached.
func (d *Data) AddAttachment(a grievance.Attachment) bool {
	if d.HasMedia(a.MediaID) {
		return false
	}
	d.Attachments = append(d.Attachments, a)
	return true
}

// Session is the per-citizen conversation record keyed by phone number.
type Session struct {
	User                     string    `json:"user"`
	Intent                   Intent    `json:"intent,omitempty"`
	State                    State     `json:"state"`
	Data                     Data      `json:"data"`
	FileMode                 FileMode  `json:"fileMode,omitempty"`
	PendingDescriptionBuffer string    `json:"pendingDescriptionBuffer,omitempty"`
	FreeFormTextBuffer       string    `json:"freeFormTextBuffer,omitempty"`
	PendingEditField         Field     `json:"pendingEditField,omitempty"`
	PendingMissingFields     []Field   `json:"pendingMissingFields,omitempty"`
	AIRequestedAt            time.Time `json:"aiRequestedAt,omitempty"`
	LastMessageAt            time.Time `json:"lastMessageAt"`
}

// New returns a fresh session at START.
func New(user string, now time.Time) *Session {
	return &Session{
		User:          user,
		State:         StateStart,
		LastMessageAt: now,
	}
}

// Reset puts s back at START keeping only the user key.
func (s *Session) Reset(now time.Time) {
	*s = *New(s.User, now)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Data.Latitude != nil {
		v := *s.Data.Latitude
		c.Data.Latitude = &v
	}
	if s.Data.Longitude != nil {
		v := *s.Data.Longitude
		c.Data.Longitude = &v
	}
	if s.Data.Attachments != nil {
		c.Data.Attachments = make([]grievance.Attachment, len(s.Data.Attachments))
		copy(c.Data.Attachments, s.Data.Attachments)
	}
	if s.PendingMissingFields != nil {
		c.PendingMissingFields = make([]Field, len(s.PendingMissingFields))
		copy(c.PendingMissingFields, s.PendingMissingFields)
	}
	return &c
}

// IsStale reports whether the last activity is older than after.
func (s *Session) IsStale(now time.Time, after time.Duration) bool {
	if s.LastMessageAt.IsZero() || after <= 0 {
		return false
	}
	return now.Sub(s.LastMessageAt) > after
}
