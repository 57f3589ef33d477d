// Package pgstore is a PostgreSQL implementation of the queue store, for deployments
// where the task history should live in a shared database.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

type taskRecord struct {
	ID          string    `gorm:"primaryKey;type:text"`
	Kind        string    `gorm:"type:text;not null"`
	Payload     *string   `gorm:"type:text"`
	Status      string    `gorm:"type:text;not null;index"`
	Seq         int64     `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *string `gorm:"type:text"`
	Error       string  `gorm:"type:text;not null;default:''"`
	Retries     int     `gorm:"not null;default:0"`
}

func (taskRecord) TableName() string { return "task_records" }

type reservedID struct {
	ID        string    `gorm:"primaryKey;type:text"`
	RemovedAt time.Time `gorm:"not null"`
}

func (reservedID) TableName() string { return "reserved_ids" }

// Store persists queue state through gorm.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var _ queue.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for storage failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = l }
}

// Open connects to PostgreSQL and migrates the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, opts...)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&taskRecord{}, &reservedID{}); err != nil {
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	return s, nil
}

// Load returns every stored task ordered by sequence, plus all reserved IDs.
func (s *Store) Load(ctx context.Context) ([]models.AgentTask, []string, error) {
	var records []taskRecord
	if err := s.db.WithContext(ctx).Order("seq").Find(&records).Error; err != nil {
		s.log.Errorw("pgstore_load_tasks_failed", "error", err)
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}

	var reserved []string
	if err := s.db.WithContext(ctx).Model(&reservedID{}).Pluck("id", &reserved).Error; err != nil {
		s.log.Errorw("pgstore_load_reserved_failed", "error", err)
		return nil, nil, fmt.Errorf("load reserved ids: %w", err)
	}

	tasks := make([]models.AgentTask, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.toTask())
	}
	return tasks, reserved, nil
}

// Save inserts or replaces a task.
func (s *Store) Save(ctx context.Context, t models.AgentTask) error {
	rec := fromTask(t)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		s.log.Errorw("pgstore_save_failed", "task_id", t.ID, "error", err)
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// Remove deletes a task and reserves its ID in one transaction.
func (s *Store) Remove(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&taskRecord{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&reservedID{ID: id, RemovedAt: time.Now().UTC()}).Error
	})
	if err != nil {
		s.log.Errorw("pgstore_remove_failed", "task_id", id, "error", err)
		return fmt.Errorf("remove task %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromTask(t models.AgentTask) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Payload:     rawToString(t.Payload),
		Status:      string(t.Status),
		Seq:         t.Seq,
		CreatedAt:   t.CreatedAt.UTC(),
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Result:      rawToString(t.Result),
		Error:       t.Error,
		Retries:     t.Retries,
	}
}

func (r taskRecord) toTask() models.AgentTask {
	t := models.AgentTask{
		ID:          r.ID,
		Kind:        models.AgentKind(r.Kind),
		Status:      models.TaskStatus(r.Status),
		Seq:         r.Seq,
		CreatedAt:   r.CreatedAt.UTC(),
		StartedAt:   utcPtr(r.StartedAt),
		CompletedAt: utcPtr(r.CompletedAt),
		Error:       r.Error,
		Retries:     r.Retries,
	}
	if r.Payload != nil {
		t.Payload = json.RawMessage(*r.Payload)
	}
	if r.Result != nil {
		t.Result = json.RawMessage(*r.Result)
	}
	return t
}

func rawToString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
