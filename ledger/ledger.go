// Package ledger keeps a SQLite record of requests and the artifacts they
// persisted, so artifacts whose compensation failed can be found and
// removed later.
package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Request states.
const (
	RequestRunning   = "running"
	RequestSucceeded = "succeeded"
	RequestFailed    = "failed"
)

// Artifact states.
const (
	ArtifactStored   = "stored"
	ArtifactDeleted  = "deleted"
	ArtifactOrphaned = "orphaned"
)

// RequestRecord is one processed request.
type RequestRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	SourceKind  string `gorm:"size:16"`
	SourcePath  string
	Destination string `gorm:"size:16;index"`
	Status      string `gorm:"size:16;index"`
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Artifacts []ArtifactRecord `gorm:"foreignKey:RequestID"`
}

func (RequestRecord) TableName() string { return "requests" }

// ArtifactRecord is one persisted derivative.
type ArtifactRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"size:36;index"`
	Kind      string `gorm:"size:16"`
	Dir       string
	File      string
	Bytes     int
	State     string `gorm:"size:16;index"`
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ArtifactRecord) TableName() string { return "artifacts" }

// Descriptor addresses the artifact for deletion.
func (a ArtifactRecord) Descriptor() core.StorageDescriptor {
	return core.StorageDescriptor{Kind: core.BackendKind(a.Kind), Dir: a.Dir, File: a.File}
}

// Deleter removes an artifact; storage.Manager satisfies it.
type Deleter interface {
	Delete(ctx context.Context, d core.StorageDescriptor) error
}

// Ledger implements core.Recorder on top of gorm.
type Ledger struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at dsn and migrates it.
func Open(dsn string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "ledger.open", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "ledger.open", err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&RequestRecord{}, &ArtifactRecord{}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "ledger.migrate", fmt.Errorf("failed to migrate ledger: %w", err))
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ── core.Recorder ─────────────────────────────────────────────────────────────

func (l *Ledger) Begin(ctx context.Context, requestID string, req *core.Request) error {
	return l.db.WithContext(ctx).Create(&RequestRecord{
		ID:          requestID,
		SourceKind:  string(req.Source.Kind),
		SourcePath:  req.Source.Path,
		Destination: string(req.Destination),
		Status:      RequestRunning,
	}).Error
}

func (l *Ledger) Artifact(ctx context.Context, requestID string, o core.SaveOutcome) error {
	return l.db.WithContext(ctx).Create(&ArtifactRecord{
		RequestID: requestID,
		Kind:      string(o.Kind),
		Dir:       o.Dir,
		File:      o.File,
		Bytes:     o.Bytes,
		State:     ArtifactStored,
	}).Error
}

func (l *Ledger) Deleted(ctx context.Context, requestID string, d core.StorageDescriptor, err error) error {
	updates := map[string]any{"state": ArtifactDeleted, "last_error": ""}
	if err != nil {
		updates = map[string]any{"state": ArtifactOrphaned, "last_error": err.Error()}
	}
	return l.db.WithContext(ctx).Model(&ArtifactRecord{}).
		Where("request_id = ? AND kind = ? AND dir = ? AND file = ?", requestID, string(d.Kind), d.Dir, d.File).
		Updates(updates).Error
}

func (l *Ledger) Finish(ctx context.Context, requestID string, err error) error {
	updates := map[string]any{"status": RequestSucceeded, "error": ""}
	if err != nil {
		updates = map[string]any{"status": RequestFailed, "error": err.Error()}
	}
	return l.db.WithContext(ctx).Model(&RequestRecord{}).Where("id = ?", requestID).Updates(updates).Error
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Request loads a request with its artifacts.
func (l *Ledger) Request(ctx context.Context, requestID string) (*RequestRecord, error) {
	var r RequestRecord
	err := l.db.WithContext(ctx).Preload("Artifacts").First(&r, "id = ?", requestID).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Orphans lists artifacts whose compensation delete failed.
func (l *Ledger) Orphans(ctx context.Context) ([]ArtifactRecord, error) {
	var out []ArtifactRecord
	err := l.db.WithContext(ctx).Where("state = ?", ArtifactOrphaned).Order("id").Find(&out).Error
	return out, err
}

// Reconcile retries deleting every orphaned artifact. It returns how many
// were removed; artifacts that still fail stay orphaned with the new error.
func (l *Ledger) Reconcile(ctx context.Context, del Deleter) (int, error) {
	orphans, err := l.Orphans(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, a := range orphans {
		derr := del.Delete(ctx, a.Descriptor())
		if err := l.Deleted(ctx, a.RequestID, a.Descriptor(), derr); err != nil {
			return removed, err
		}
		if derr == nil {
			removed++
		}
	}
	return removed, nil
}

var _ core.Recorder = (*Ledger)(nil)
