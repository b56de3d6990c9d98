package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action is an audited image operation.
type Action string

const (
	ActionUpload Action = "upload"
	ActionDelete Action = "delete"
)

// Outcome is the result of an audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audited image operation.
type Event struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Subject   string    `json:"subject" gorm:"not null;index"`
	Action    Action    `json:"action" gorm:"not null"`
	Key       string    `json:"key" gorm:"not null"`
	Outcome   Outcome   `json:"outcome" gorm:"not null"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name.
func (Event) TableName() string {
	return "image_audit_events"
}

// Recorder stores audit events.
type Recorder interface {
	Record(ctx context.Context, e *Event) error
}

// GormRecorder writes events to a relational database.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder creates a recorder backed by db.
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Migrate creates or updates the events table.
func (r *GormRecorder) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Event{})
}

func (r *GormRecorder) Record(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

// NoopRecorder discards events. Used when no database is configured.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, *Event) error { return nil }

// NewRecorder returns a database recorder, or a no-op one when db is nil.
func NewRecorder(ctx context.Context, db *gorm.DB) (Recorder, error) {
	if db == nil {
		return NoopRecorder{}, nil
	}
	r := NewGormRecorder(db)
	if err := r.Migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

var (
	_ Recorder = (*GormRecorder)(nil)
	_ Recorder = NoopRecorder{}
)
