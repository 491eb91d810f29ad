package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type complaintModel struct {
	ID             string `gorm:"primaryKey"`
	ReferenceID    string `gorm:"uniqueIndex:idx_complaints_reference;not null"`
	ContactName    string `gorm:"not null"`
	ContactEmail   string `gorm:"not null"`
	ContactPhone   string `gorm:"index:idx_complaints_phone"`
	WhatsAppNumber string `gorm:"index:idx_complaints_whatsapp"`
	Title          string `gorm:"not null"`
	Description    string `gorm:"type:text;not null"`
	Category       string `gorm:"index:idx_complaints_category;not null"`
	District       string `gorm:"index:idx_complaints_district;not null"`
	Subdistrict    string `gorm:"not null"`
	Area           string `gorm:"not null"`
	Location       string
	Latitude       *float64
	Longitude      *float64
	Attachments    string    `gorm:"type:text;default:'[]'"` // JSON
	Status         string    `gorm:"index:idx_complaints_status;default:'pending'"`
	Source         string    `gorm:"default:'whatsapp'"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (complaintModel) TableName() string {
	return "complaints"
}

// --- Repository Implementation ---

const maxReferenceAttempts = 5

// ComplaintGormRepository stores grievances and issues reference ids of the
// form DDMMYYYY + office code + 3-digit daily sequence, e.g. 31012026MLA002.
type ComplaintGormRepository struct {
	db         *gorm.DB
	officeCode string
	loc        *time.Location
	now        func() time.Time
}

func NewComplaintGormRepository(db *gorm.DB, officeCode string) *ComplaintGormRepository {
	return &ComplaintGormRepository{
		db:         db,
		officeCode: strings.ToUpper(officeCode),
		loc:        indiaLocation(),
		now:        time.Now,
	}
}

func indiaLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+30*60)
}

func (r *ComplaintGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&complaintModel{})
}

func (r *ComplaintGormRepository) Create(ctx context.Context, g grievance.Grievance) (grievance.Created, error) {
	attachments, err := json.Marshal(g.Attachments)
	if err != nil {
		return grievance.Created{}, fmt.Errorf("failed to encode attachments: %w", err)
	}
	if g.Attachments == nil {
		attachments = []byte("[]")
	}
	source := g.Source
	if source == "" {
		source = grievance.SourceWhatsApp
	}

	now := r.now().UTC()
	model := complaintModel{
		ID:             uuid.New().String(),
		ContactName:    g.Name,
		ContactEmail:   g.Email,
		ContactPhone:   g.Phone,
		WhatsAppNumber: g.WhatsAppNumber,
		Title:          g.Title,
		Description:    g.Description,
		Category:       string(g.Category),
		District:       g.District,
		Subdistrict:    g.Subdistrict,
		Area:           g.Area,
		Location:       g.Location,
		Latitude:       g.Latitude,
		Longitude:      g.Longitude,
		Attachments:    string(attachments),
		Status:         string(grievance.StatusPending),
		Source:         string(source),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ref, err := r.nextReference(tx, now)
			if err != nil {
				return err
			}
			model.ReferenceID = ref
			return tx.Create(&model).Error
		})
		if err == nil {
			return grievance.Created{ID: model.ID, ReferenceID: model.ReferenceID}, nil
		}
		if !isDuplicate(err) {
			return grievance.Created{}, fmt.Errorf("failed to create complaint: %w", err)
		}
		logrus.WithField("reference", model.ReferenceID).Debugf("[COMPLAINT_REPO] Reference collision, retrying (%d/%d)", attempt, maxReferenceAttempts)
	}
	return grievance.Created{}, grievance.ErrDuplicate
}

func (r *ComplaintGormRepository) nextReference(tx *gorm.DB, now time.Time) (string, error) {
	prefix := now.In(r.loc).Format("02012006") + r.officeCode

	var count int64
	if err := tx.Model(&complaintModel{}).Where("reference_id LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to count today's complaints: %w", err)
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (r *ComplaintGormRepository) FindByReference(ctx context.Context, ref string) (*grievance.Record, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return nil, grievance.ErrInvalidRef
	}

	var m complaintModel
	if err := r.db.WithContext(ctx).First(&m, "reference_id = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grievance.ErrNotFound
		}
		return nil, err
	}
	return &grievance.Record{
		ID:          m.ID,
		ReferenceID: m.ReferenceID,
		Title:       m.Title,
		Category:    grievance.Category(m.Category),
		District:    m.District,
		Status:      grievance.Status(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// UpdateStatus is used by officers' tooling and tests.
func (r *ComplaintGormRepository) UpdateStatus(ctx context.Context, ref string, status grievance.Status) error {
	res := r.db.WithContext(ctx).Model(&complaintModel{}).
		Where("reference_id = ?", strings.ToUpper(ref)).
		Updates(map[string]any{"status": string(status), "updated_at": r.now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return grievance.ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
