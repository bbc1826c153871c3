package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/voicetyped/botkit/pkg/storage"
)

// ErrDeadLetterNotFound is returned when a dead letter id is unknown.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetter holds an event that exhausted its delivery retries.
type DeadLetter struct {
	ID         string    `gorm:"type:varchar(50);primaryKey"                     json:"id"`
	EndpointID string    `gorm:"type:varchar(50);not null;index:idx_dl_endpoint" json:"endpoint_id"`
	EventID    string    `gorm:"type:varchar(50);not null"                       json:"event_id"`
	EventType  string    `gorm:"type:varchar(100);not null"                      json:"event_type"`
	Payload    string    `gorm:"type:text;not null"                              json:"payload"`
	LastError  string    `gorm:"type:text"                                       json:"last_error"`
	Attempts   int       `gorm:"default:0"                                       json:"attempts"`
	Replayable bool      `gorm:"default:true"                                    json:"replayable"`
	CreatedAt  time.Time `json:"created_at"`
}

func (DeadLetter) TableName() string { return "webhook_dead_letters" }

// DeadLetterSink receives events that could not be delivered.
type DeadLetterSink interface {
	CreateDeadLetter(ctx context.Context, dl *DeadLetter) error
}

// Repository stores dead letters next to the bot state tables.
type Repository struct {
	provider storage.DBProvider
}

// NewRepository creates a repository. In the service the provider is
// frame's datastore pool.
func NewRepository(provider storage.DBProvider) *Repository {
	return &Repository{provider: provider}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.provider.DB(ctx, readOnly)
}

// Migrate creates the dead letter table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&DeadLetter{})
}

// CreateDeadLetter persists a dead-lettered event.
func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	if dl.ID == "" {
		dl.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(dl).Error
}

// ListDeadLetters returns replayable dead letters for an endpoint, newest first.
func (r *Repository) ListDeadLetters(ctx context.Context, endpointID string) ([]DeadLetter, error) {
	var letters []DeadLetter
	err := r.db(ctx, true).
		Where("endpoint_id = ? AND replayable = ?", endpointID, true).
		Order("created_at DESC").
		Find(&letters).Error
	return letters, err
}

// GetDeadLetter returns a single dead letter by its id.
func (r *Repository) GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error) {
	var dl DeadLetter
	err := r.db(ctx, true).Where("id = ?", id).First(&dl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

// MarkDeadLetterReplayed marks a dead letter as no longer replayable.
func (r *Repository) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	return r.db(ctx, false).
		Model(&DeadLetter{}).
		Where("id = ?", id).
		Update("replayable", false).Error
}
