package attendance

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workforce/internal/queue"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "attendance.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Type)
	}
	return out
}

type fixture struct {
	svc     *Service
	repo    *Repository
	clock   *testClock
	pub     *recordingPublisher
	metrics *Metrics
}

// at returns 2026-10-16 hh:mm:ss UTC.
func at(hh, mm, ss int) time.Time {
	return time.Date(2026, time.October, 16, hh, mm, ss, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewRepository(openTestDB(t))
	clock := &testClock{now: at(9, 0, 0)}
	pub := &recordingPublisher{}
	metrics := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, NewWorkdayClock(time.UTC, clock.Now), pub, metrics, logger)
	return &fixture{svc: svc, repo: repo, clock: clock, pub: pub, metrics: metrics}
}

func (f *fixture) today(t *testing.T, userID string) Record {
	t.Helper()
	rec, err := f.repo.FindDay(context.Background(), userID, "2026-10-16")
	if err != nil {
		t.Fatalf("FindDay: %v", err)
	}
	return rec
}

func (f *fixture) breaks(t *testing.T, attendanceID string) []BreakEntry {
	t.Helper()
	entries, err := f.repo.ListBreaks(context.Background(), attendanceID)
	if err != nil {
		t.Fatalf("ListBreaks: %v", err)
	}
	return entries
}
