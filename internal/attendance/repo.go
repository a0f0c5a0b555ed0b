package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists attendance data through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the attendance tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{}, &BreakEntry{}, &Event{})
}

// WithTx runs fn inside one transaction with a repository bound to it.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// UpsertSession inserts today's record or, when it already exists, marks it
// active again without touching login_time. The stored row is returned.
func (r *Repository) UpsertSession(ctx context.Context, userID, workDate string, now time.Time) (Record, error) {
	rec := Record{
		UserID:          userID,
		WorkDate:        workDate,
		LoginTime:       now,
		IsActiveSession: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "work_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_active_session": true,
			"updated_at":        now,
		}),
	}).Create(&rec).Error
	if err != nil {
		return Record{}, fmt.Errorf("upsert attendance: %w", err)
	}
	return r.FindDay(ctx, userID, workDate)
}

// FindDay returns the record for (userID, workDate).
func (r *Repository) FindDay(ctx context.Context, userID, workDate string) (Record, error) {
	return r.findDay(r.db.WithContext(ctx), userID, workDate)
}

// LockDay is FindDay with a row lock held until the surrounding transaction ends.
func (r *Repository) LockDay(ctx context.Context, userID, workDate string) (Record, error) {
	return r.findDay(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID, workDate)
}

func (r *Repository) findDay(db *gorm.DB, userID, workDate string) (Record, error) {
	var rec Record
	err := db.Where("user_id = ? AND work_date = ?", userID, workDate).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrAttendanceNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load attendance: %w", err)
	}
	return rec, nil
}

// UpdateRecord applies column updates to a record. Nil values clear the column.
func (r *Repository) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update attendance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

// OpenBreaks lists ledger entries without an end, most recent first.
func (r *Repository) OpenBreaks(ctx context.Context, attendanceID string) ([]BreakEntry, error) {
	var entries []BreakEntry
	err := r.db.WithContext(ctx).
		Where("attendance_id = ? AND break_end IS NULL", attendanceID).
		Order("created_at DESC").Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load open breaks: %w", err)
	}
	return entries, nil
}

// CreateBreak appends an entry to the ledger.
func (r *Repository) CreateBreak(ctx context.Context, entry *BreakEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create break: %w", err)
	}
	return nil
}

// CloseBreak sets break_end on an entry only if it is still open.
func (r *Repository) CloseBreak(ctx context.Context, id string, end time.Time) error {
	res := r.db.WithContext(ctx).Model(&BreakEntry{}).
		Where("id = ? AND break_end IS NULL", id).
		Update("break_end", end)
	if res.Error != nil {
		return fmt.Errorf("close break: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoOpenBreak
	}
	return nil
}

// ListBreaks returns all ledger entries of a record in creation order.
func (r *Repository) ListBreaks(ctx context.Context, attendanceID string) ([]BreakEntry, error) {
	var entries []BreakEntry
	err := r.db.WithContext(ctx).
		Where("attendance_id = ?", attendanceID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListRecords returns a user's records newest day first, with their breaks.
func (r *Repository) ListRecords(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	limit, offset = page(limit, offset)
	var records []Record
	err := r.db.WithContext(ctx).
		Preload("Breaks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("user_id = ?", userID).
		Order("work_date DESC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// InsertEvent writes an audit event.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.When.IsZero() {
		evt.When = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&evt).Error; err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return evt, nil
}

// ListEvents returns a user's audit events, newest first.
func (r *Repository) ListEvents(ctx context.Context, userID string, limit, offset int) ([]Event, error) {
	limit, offset = page(limit, offset)
	var events []Event
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
