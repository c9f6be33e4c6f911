package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/video-stream/annotator/internal/db/models"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		video_path TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL DEFAULT '',
		transcript_path TEXT NOT NULL DEFAULT '',
		labeled_path TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'none',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		session_id TEXT NOT NULL,
		params TEXT NOT NULL,
		progress REAL DEFAULT 0,
		result TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_session ON jobs(session_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// SaveSession upserts the full pointer set of a session.
func (d *Database) SaveSession(s *models.Session) error {
	now := time.Now()
	_, err := d.db.Exec(`
		INSERT INTO sessions (id, video_path, display_name, audio_path, transcript_path, labeled_path, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_path=excluded.video_path,
			display_name=excluded.display_name,
			audio_path=excluded.audio_path,
			transcript_path=excluded.transcript_path,
			labeled_path=excluded.labeled_path,
			source=excluded.source,
			updated_at=excluded.updated_at`,
		s.ID, s.VideoPath, s.DisplayName, s.AudioPath, s.TranscriptPath, s.LabeledPath, s.Source, now,
	)
	if err == nil {
		s.UpdatedAt = now
	}
	return err
}

// GetSession returns the stored session, or nil if there is none.
func (d *Database) GetSession(id string) (*models.Session, error) {
	s := &models.Session{}
	err := d.db.QueryRow(`
		SELECT id, video_path, display_name, audio_path, transcript_path, labeled_path, source, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.VideoPath, &s.DisplayName, &s.AudioPath, &s.TranscriptPath, &s.LabeledPath, &s.Source, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSetting returns a setting value by key, or defaultVal if not found
func (d *Database) GetSetting(key, defaultVal string) string {
	var val string
	err := d.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err != nil {
		return defaultVal
	}
	return val
}

// SetSetting upserts a setting
func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP`,
		key, value, value,
	)
	return err
}

// DeleteSetting removes a setting so the configured default applies again
func (d *Database) DeleteSetting(key string) error {
	_, err := d.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// GetAllSettings returns all settings as a map
func (d *Database) GetAllSettings() (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB for use by other packages (e.g., job queue)
func (d *Database) DB() *sql.DB {
	return d.db
}
