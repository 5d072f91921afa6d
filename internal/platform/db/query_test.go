package db

import "testing"

func TestSearchQuery_NoFilters(t *testing.T) {
	q := NewSearchQuery("patients", "id, first_name").OrderBy("created_at DESC")

	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM patients" {
		t.Errorf("unexpected count sql: %s", got)
	}
	want := "SELECT id, first_name FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2"
	if got := q.DataSQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	args := q.DataArgs(20, 40)
	if len(args) != 2 || args[0] != 20 || args[1] != 40 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestSearchQuery_Placeholders(t *testing.T) {
	q := NewSearchQuery("patients", "id").
		Where("first_name ILIKE ? OR last_name ILIKE ?", "%ann%", "%ann%").
		Where("date_of_birth <= ?", "2000-01-01")

	wantCount := "SELECT COUNT(*) FROM patients WHERE (first_name ILIKE $1 OR last_name ILIKE $2) AND (date_of_birth <= $3)"
	if got := q.CountSQL(); got != wantCount {
		t.Errorf("expected %q, got %q", wantCount, got)
	}
	wantData := "SELECT id FROM patients WHERE (first_name ILIKE $1 OR last_name ILIKE $2) AND (date_of_birth <= $3) LIMIT $4 OFFSET $5"
	if got := q.DataSQL(); got != wantData {
		t.Errorf("expected %q, got %q", wantData, got)
	}
	if n := len(q.Args()); n != 3 {
		t.Errorf("expected 3 filter args, got %d", n)
	}
	if n := len(q.DataArgs(5, 0)); n != 5 {
		t.Errorf("expected 5 data args, got %d", n)
	}
	if n := len(q.Args()); n != 3 {
		t.Errorf("DataArgs must not mutate filter args, got %d", n)
	}
}

func TestSearchQuery_ArgMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on placeholder/arg mismatch")
		}
	}()
	NewSearchQuery("patients", "id").Where("email = ?")
}
