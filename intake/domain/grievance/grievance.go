package grievance

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("grievance not found")
	ErrDuplicate  = errors.New("grievance reference already exists")
	ErrInvalidRef = errors.New("invalid grievance reference")
)

// Category is the closed set of grievance departments.
type Category string

const (
	CategoryRoads       Category = "roads"
	CategoryWater       Category = "water"
	CategoryElectricity Category = "electricity"
	CategoryDocuments   Category = "documents"
	CategoryHealth      Category = "health"
	CategoryEducation   Category = "education"
)

// Categories is ordered the way the category menu presents them.
var Categories = []Category{
	CategoryRoads,
	CategoryWater,
	CategoryElectricity,
	CategoryDocuments,
	CategoryHealth,
	CategoryEducation,
}

// ParseCategory matches s case-insensitively against Categories.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Label renders a status for citizens.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In progress"
	case StatusResolved:
		return "Resolved"
	case StatusRejected:
		return "Rejected"
	default:
		return "Pending"
	}
}

type Source string

const (
	SourceWhatsApp     Source = "whatsapp"
	SourceWhatsAppFlow Source = "whatsapp_flow"
)

// Attachment is a stored image or document. URL stays empty until the file
// has been durably persisted.
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	MediaID  string `json:"mediaId"`
}

// Submittable reports whether the attachment points at a stored http(s) file.
func (a Attachment) Submittable() bool {
	u := strings.ToLower(strings.TrimSpace(a.URL))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// Grievance is the fully validated record handed to the complaint store.
type Grievance struct {
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone,omitempty"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       Category     `json:"category"`
	District       string       `json:"district"`
	Subdistrict    string       `json:"subdistrict"`
	Area           string       `json:"area"`
	Location       string       `json:"location,omitempty"`
	Latitude       *float64     `json:"latitude,omitempty"`
	Longitude      *float64     `json:"longitude,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Source         Source       `json:"source"`
	WhatsAppNumber string       `json:"whatsappNumber,omitempty"`
}

// Created identifies a stored grievance.
type Created struct {
	ID          string `json:"id"`
	ReferenceID string `json:"referenceId"`
}

// Record is the read model used for status tracking.
type Record struct {
	ID          string
	ReferenceID string
	Title       string
	Category    Category
	District    string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Creator interface {
	Create(ctx context.Context, g Grievance) (Created, error)
}

type Finder interface {
	// FindByReference returns ErrNotFound when no grievance carries ref.
	FindByReference(ctx context.Context, ref string) (*Record, error)
}

type Repository interface {
	Creator
	Finder
}
