package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/thermal-logger/internal/session"
	"github.com/roman-kulish/thermal-logger/internal/telemetry"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore returns a store backed by the Sqlite database at dbPath.
// Connections are opened on first use; the schema is created with the write
// connection.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		// capture loop and telemetry ingest share it; sqlite has one writer anyway
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, sess *session.Session, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, sess.RunID, sess.Name, sess.Dir, sess.StartedAt.UTC(), configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (sess *SessionInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (_ *SessionInfo, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	sess, err := scanSession(stmt.QueryRowContext(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return sess, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*SessionInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *SessionInfo
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func scanSession(row interface{ Scan(...any) error }) (*SessionInfo, error) {
	var sess SessionInfo
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.RunID, &sess.Name, &sess.Directory, &sess.StartTime, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}

// ReadCaptures creates a CaptureReader over the captures of a session, in
// capture order. The reader must be closed after use.
func (s *SqliteStore) ReadCaptures(ctx context.Context, sessionID int64, opts ...ReaderOption) (*CaptureReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newCaptureReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) StoreCapture(ctx context.Context, sessionID int64, rec *session.IndexRecord) (captureID int64, err error) {
	data, err := toCaptureData(sessionID, rec)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertCaptureSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.CapturedAt,
		data.Filename,
		data.Raw16File,
		data.Colormap,
		data.Mode,
		data.FrameMin,
		data.FrameMax,
		data.FrameAvg,
		data.ROIMin,
		data.ROIMax,
		data.ROIMean,
		data.ROIX1,
		data.ROIY1,
		data.ROIX2,
		data.ROIY2,
		data.Latitude,
		data.Longitude,
	)
	if err != nil {
		err = fmt.Errorf("inserting capture: %w", err)
		return
	}

	captureID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting capture ID: %w", err)
	}
	return
}

func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID int64, sample telemetry.Sample) (telemetryID int64, err error) {
	data, err := toTelemetryData(sessionID, sample)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTelemetrySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.Kind,
		data.DeviceTimestamp,
		data.ReceivedAt,
		data.Latitude,
		data.Longitude,
		data.Altitude,
		data.Satellites,
	)
	if err != nil {
		err = fmt.Errorf("inserting telemetry: %w", err)
		return
	}

	telemetryID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting telemetry ID: %w", err)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
