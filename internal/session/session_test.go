package session

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpen_Numbering(t *testing.T) {
	root := t.TempDir()

	for i := 1; i <= 7; i++ {
		if err := os.Mkdir(filepath.Join(root, "session0"+string(rune('0'+i))), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"session_notes", "sessionXX", "session9", "launch99"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "session50"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(root, "session")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if s.ID != 8 || s.Name != "session08" {
		t.Errorf("expected session08, got %s (%d)", s.Name, s.ID)
	}
	if s.Dir != filepath.Join(root, "session08") {
		t.Errorf("unexpected directory %s", s.Dir)
	}
	if stat, err := os.Stat(s.Dir); err != nil || !stat.IsDir() {
		t.Errorf("expected session directory to exist: %v", err)
	}
	if s.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestOpen_NumberingPastNinetyNine(t *testing.T) {
	root := t.TempDir()

	if err := os.Mkdir(filepath.Join(root, "launch99"), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"launch100", "launch101"} {
		s, err := Open(root, "launch")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Name != want {
			t.Errorf("expected %s, got %s", want, s.Name)
		}
	}
}

func TestOpen_EmptyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data", "flir_lepton")

	s, err := Open(root, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Name != "launch01" {
		t.Errorf("expected launch01, got %s", s.Name)
	}

	next, err := Open(root, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if next.Name != "launch02" {
		t.Errorf("expected launch02, got %s", next.Name)
	}
}

func TestOpen_RootNotWritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(filepath.Join(file, "sub"), "")
	if !errors.Is(err, ErrSessionCreate) {
		t.Errorf("expected ErrSessionCreate, got %v", err)
	}
}

func TestInitIndex_DoesNotTruncate(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	if err = s.InitIndex(); err != nil {
		t.Fatalf("InitIndex failed: %v", err)
	}

	f, err := os.OpenFile(s.IndexPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.WriteString("existing,row\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if err = s.InitIndex(); err != nil {
		t.Fatalf("second InitIndex failed: %v", err)
	}

	rows := readCSV(t, s.IndexPath)
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d rows", len(rows))
	}
	if !reflect.DeepEqual(rows[0], IndexHeader) {
		t.Errorf("unexpected header %v", rows[0])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}
