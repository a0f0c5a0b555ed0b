package attendance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record is the single attendance row for a user on one work date.
type Record struct {
	ID                  string       `gorm:"size:36;primaryKey" json:"id"`
	UserID              string       `gorm:"size:64;not null;uniqueIndex:idx_attendance_user_day,priority:1" json:"userId"`
	WorkDate            string       `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_day,priority:2" json:"workDate"`
	LoginTime           time.Time    `gorm:"not null" json:"loginTime"`
	LogoutTime          *time.Time   `json:"logoutTime"`
	IsActiveSession     bool         `gorm:"not null" json:"isActiveSession"`
	BreakStartTime      *time.Time   `json:"breakStartTime"`
	BreakEndTime        *time.Time   `json:"breakEndTime"`
	TotalBreakMinutes   int          `gorm:"not null" json:"totalBreakMinutes"`
	TotalWorkingMinutes *int         `json:"totalWorkingMinutes"`
	Breaks              []BreakEntry `gorm:"foreignKey:AttendanceID;constraint:OnDelete:CASCADE" json:"breaks,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// TableName pins the table name.
func (Record) TableName() string { return "attendance_records" }

// BeforeCreate assigns a uuid primary key.
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// OnBreak reports whether the break mirror shows an open break.
func (r Record) OnBreak() bool {
	return r.BreakStartTime != nil && r.BreakEndTime == nil
}

// BreakEntry is one break interval in the ledger of an attendance record.
// BreakEnd stays nil while the break is open.
type BreakEntry struct {
	ID           string     `gorm:"size:36;primaryKey" json:"id"`
	AttendanceID string     `gorm:"size:36;index;not null" json:"attendanceId"`
	BreakStart   time.Time  `gorm:"not null" json:"breakStart"`
	BreakEnd     *time.Time `json:"breakEnd"`
	CreatedAt    time.Time  `gorm:"index" json:"createdAt"`
}

// TableName pins the table name.
func (BreakEntry) TableName() string { return "break_log_entries" }

// BeforeCreate assigns a uuid primary key.
func (b *BreakEntry) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Event is an attendance lifecycle entry in the audit trail.
type Event struct {
	ID           string    `gorm:"size:36;primaryKey" json:"id"`
	Type         string    `gorm:"size:64;not null;index" json:"type"`
	UserID       string    `gorm:"size:64;not null;index" json:"userId"`
	AttendanceID string    `gorm:"size:36;index" json:"attendanceId,omitempty"`
	WorkDate     string    `gorm:"size:10" json:"workDate,omitempty"`
	When         time.Time `gorm:"column:occurred_at;not null;index" json:"when"`
	Minutes      *int      `json:"minutes,omitempty"`
	Detail       string    `gorm:"size:255" json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName pins the table name.
func (Event) TableName() string { return "attendance_events" }

// BeforeCreate assigns a uuid primary key.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Event types published on the queue.
const (
	EventSessionOpened = "attendance.session_opened"
	EventSessionClosed = "attendance.session_closed"
	EventBreakStarted  = "attendance.break_started"
	EventBreakEnded    = "attendance.break_ended"
	EventAnomaly       = "attendance.anomaly"
)

// Status is the read-only view of today's attendance.
type Status struct {
	LoggedIn       bool
	OnBreak        bool
	LoginTime      *time.Time
	BreakStartTime *time.Time
}

// Closure reports the outcome of closing a session.
type Closure struct {
	// Closed is false when there was no active session to close.
	Closed              bool
	Record              Record
	ForcedBreakMinutes  int
	ForcedBreakClosed   bool
	TotalWorkingMinutes int
}
