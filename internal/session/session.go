// Package session owns the run-scoped output directory: numbering, the CSV
// index, the event log and atomic image writes.
package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPrefix is the directory name prefix of launch sessions
	DefaultPrefix = "launch"

	IndexFile = "index.csv"
	LogFile   = "session_log.txt"
	GPSFile   = "gps.csv"
	ClockFile = "clock.csv"

	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrSessionCreate is returned when the session directory cannot be created
	ErrSessionCreate = errors.New("cannot create session")

	// ErrSaveFailed is returned when an atomic image write does not verify
	ErrSaveFailed = errors.New("save failed")
)

// Session is one numbered logging run
type Session struct {
	ID        int
	Name      string
	Dir       string
	IndexPath string
	LogPath   string
	RunID     string
	StartedAt time.Time

	JPEGQuality int // used by SaveImage for .jpg files, 0 means DefaultJPEGQuality
}

// Open scans root for directories named prefix followed by at least two
// digits and creates the next one. Numbering starts at 1. The directory is created with
// Mkdir so two processes can never share it.
func Open(root, prefix string) (*Session, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating root '%s': %w", ErrSessionCreate, root, err)
	}

	id, err := nextID(root, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	name := fmt.Sprintf("%s%02d", prefix, id)
	dir := filepath.Join(root, name)
	if err = os.Mkdir(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating '%s': %w", ErrSessionCreate, dir, err)
	}

	return &Session{
		ID:        id,
		Name:      name,
		Dir:       dir,
		IndexPath: filepath.Join(dir, IndexFile),
		LogPath:   filepath.Join(dir, LogFile),
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}, nil
}

func nextID(root, prefix string) (int, error) {
	pattern, err := regexp.Compile("^" + regexp.QuoteMeta(prefix) + `(\d{2,})$`)
	if err != nil {
		return 0, fmt.Errorf("compiling session pattern: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("scanning '%s': %w", root, err)
	}

	var last int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		last = max(last, n)
	}

	return last + 1, nil
}

// InitIndex writes the index header if the index file does not exist yet. An
// existing index is never truncated.
func (s *Session) InitIndex() error {
	return initCSV(s.IndexPath, IndexHeader)
}

// Path returns the absolute location of a file inside the session directory.
func (s *Session) Path(filename string) string {
	return filepath.Join(s.Dir, filename)
}

func initCSV(path string, header []string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("creating '%s': %w", path, err)
	}
	defer closeWithError(f, &err)

	w := csv.NewWriter(f)
	if err = w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
