package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/vigil/internal/monitor"
)

// mockRows implements pgx.Rows over in-memory rows of
// (category, severity, message, fired_at).
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*string) = row[1].(string)
	*dest[2].(*string) = row[2].(string)
	*dest[3].(*time.Time) = row[3].(time.Time)
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// mockDB implements DB for testing.
type mockDB struct {
	execs   []execCall
	execErr error
	rows    *mockRows
	args    []any
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	m.args = args
	return m.rows, nil
}

func TestJournal_Migrate(t *testing.T) {
	db := &mockDB{}
	if err := New(db, "host").Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS vigil_alerts") {
		t.Errorf("execs = %+v, want schema", db.execs)
	}

	db.execErr = errors.New("permission denied")
	if err := New(db, "host").Migrate(context.Background()); err == nil {
		t.Error("Migrate with failing Exec: err = nil")
	}
}

func TestJournal_Send(t *testing.T) {
	db := &mockDB{}
	j := New(db, "workstation")
	fired := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	err := j.Send(context.Background(), monitor.Alert{
		Category: monitor.MemoryCritical,
		Severity: monitor.SeverityAlert,
		Message:  "Memory usage is critical at 96 percent.",
		Time:     fired,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if j.Name() != "journal" {
		t.Errorf("Name() = %q", j.Name())
	}
	args := db.execs[0].args
	want := []any{"memory_critical", "alert", "Memory usage is critical at 96 percent.", "workstation", fired}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, args[i], want[i])
		}
	}
}

func TestJournal_Recent(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := &mockRows{data: [][]any{
		{"battery_low", "alert", "Battery is low.", t0.Add(time.Hour)},
		{"disk_full", "suggestion", "Disk is full.", t0},
	}}
	db := &mockDB{rows: rows}

	got, err := New(db, "").Recent(context.Background(), t0, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Category != monitor.BatteryLow || got[0].Severity != monitor.SeverityAlert {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Severity != monitor.SeveritySuggestion || !got[1].Time.Equal(t0) {
		t.Errorf("second = %+v", got[1])
	}
	if db.args[1] != 10 {
		t.Errorf("limit arg = %v, want 10", db.args[1])
	}

	db.rows = &mockRows{err: errors.New("connection reset")}
	if _, err := New(db, "").Recent(context.Background(), t0, 10); err == nil {
		t.Error("Recent with rows error: err = nil")
	}
}

func TestJournal_CloseWithoutPool(t *testing.T) {
	New(&mockDB{}, "").Close()
}
