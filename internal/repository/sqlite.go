// Package repository provides SQLite-backed persistence for showcase
// timelines. The timeline is stored as a single row per showcase: scalar
// columns for the fields queried directly, JSON TEXT columns for the nested
// aggregate parts. Saving is therefore atomic without transactions spanning
// multiple tables.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/showcaselive/showtime/internal/models"
)

// Repository wraps the SQLite database handle.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite handles one writer at a time; keep the pool at a single
	// connection so in-memory databases are not silently duplicated.
	db.SetMaxOpenConns(1)

	r := &Repository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// NewWithDB wraps an existing database handle. Used by tests with sqlmock;
// no migrations are run.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timelines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		showcase_id TEXT NOT NULL UNIQUE,
		config TEXT NOT NULL,
		phases TEXT NOT NULL,
		performances TEXT NOT NULL DEFAULT '[]',
		ad_clips TEXT NOT NULL DEFAULT '[]',
		current_phase TEXT NOT NULL DEFAULT '',
		event_status TEXT NOT NULL DEFAULT 'scheduled',
		is_live INTEGER NOT NULL DEFAULT 0,
		is_paused INTEGER NOT NULL DEFAULT 0,
		paused_at TEXT,
		paused_by TEXT NOT NULL DEFAULT '',
		actual_start_time TEXT,
		scheduled_start TEXT NOT NULL,
		next_event_at TEXT,
		viewer_count INTEGER NOT NULL DEFAULT 0,
		peak_viewer_count INTEGER NOT NULL DEFAULT 0,
		time_extensions TEXT NOT NULL DEFAULT '[]',
		manual_override TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timelines_event_status ON timelines(event_status);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

const timelineColumns = `id, showcase_id, config, phases, performances, ad_clips,
	current_phase, event_status, is_live, is_paused, paused_at, paused_by,
	actual_start_time, scheduled_start, next_event_at, viewer_count,
	peak_viewer_count, time_extensions, manual_override, created_at, updated_at`

// CreateTimeline inserts a new timeline row and fills in the generated ID.
// Returns ErrDuplicateShowcase when one already exists for the showcase.
func (r *Repository) CreateTimeline(tl *models.Timeline) error {
	cols, err := marshalAggregate(tl)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tl.CreatedAt = now
	tl.UpdatedAt = now

	res, err := r.db.Exec(`
		INSERT INTO timelines (showcase_id, config, phases, performances, ad_clips,
			current_phase, event_status, is_live, is_paused, paused_at, paused_by,
			actual_start_time, scheduled_start, next_event_at, viewer_count,
			peak_viewer_count, time_extensions, manual_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tl.ShowcaseID, cols.config, cols.phases, cols.performances, cols.adClips,
		tl.CurrentPhase, string(tl.EventStatus), boolToInt(tl.IsLive), boolToInt(tl.IsPaused),
		timeToNull(tl.PausedAt), tl.PausedBy, timeToNull(tl.ActualStartTime),
		formatTime(tl.ScheduledStart), timeToNull(tl.NextEventAt),
		tl.ViewerCount, tl.PeakViewerCount, cols.extensions, cols.override,
		formatTime(tl.CreatedAt), formatTime(tl.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateShowcase
		}
		return fmt.Errorf("inserting timeline: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	tl.ID = id
	return nil
}

// GetTimeline loads the full aggregate for a showcase.
func (r *Repository) GetTimeline(showcaseID string) (*models.Timeline, error) {
	row := r.db.QueryRow(
		`SELECT `+timelineColumns+` FROM timelines WHERE showcase_id = ?`, showcaseID)
	return scanTimeline(row)
}

// SaveTimeline writes the whole aggregate back in one statement.
func (r *Repository) SaveTimeline(tl *models.Timeline) error {
	cols, err := marshalAggregate(tl)
	if err != nil {
		return err
	}

	tl.UpdatedAt = time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE timelines SET config = ?, phases = ?, performances = ?, ad_clips = ?,
			current_phase = ?, event_status = ?, is_live = ?, is_paused = ?,
			paused_at = ?, paused_by = ?, actual_start_time = ?, scheduled_start = ?,
			next_event_at = ?, viewer_count = ?, peak_viewer_count = ?,
			time_extensions = ?, manual_override = ?, updated_at = ?
		WHERE showcase_id = ?`,
		cols.config, cols.phases, cols.performances, cols.adClips,
		tl.CurrentPhase, string(tl.EventStatus), boolToInt(tl.IsLive), boolToInt(tl.IsPaused),
		timeToNull(tl.PausedAt), tl.PausedBy, timeToNull(tl.ActualStartTime),
		formatTime(tl.ScheduledStart), timeToNull(tl.NextEventAt),
		tl.ViewerCount, tl.PeakViewerCount, cols.extensions, cols.override,
		formatTime(tl.UpdatedAt), tl.ShowcaseID)
	if err != nil {
		return fmt.Errorf("updating timeline: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLiveTimelines returns every timeline currently marked live. The ticker
// driver polls this to know which events need time-based resolution.
func (r *Repository) ListLiveTimelines() ([]*models.Timeline, error) {
	rows, err := r.db.Query(
		`SELECT `+timelineColumns+` FROM timelines WHERE is_live = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying live timelines: %w", err)
	}
	defer rows.Close()

	var out []*models.Timeline
	for rows.Next() {
		tl, err := scanTimeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}

// ListTimelines returns every timeline, newest first.
func (r *Repository) ListTimelines() ([]*models.Timeline, error) {
	rows, err := r.db.Query(
		`SELECT ` + timelineColumns + ` FROM timelines ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying timelines: %w", err)
	}
	defer rows.Close()

	var out []*models.Timeline
	for rows.Next() {
		tl, err := scanTimeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}

// DeleteTimeline removes a showcase's timeline entirely.
func (r *Repository) DeleteTimeline(showcaseID string) error {
	res, err := r.db.Exec(`DELETE FROM timelines WHERE showcase_id = ?`, showcaseID)
	if err != nil {
		return fmt.Errorf("deleting timeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSetting returns the value for key, or "" when unset.
func (r *Repository) GetSetting(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a key/value pair.
func (r *Repository) SetSetting(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// jsonColumns holds the marshalled nested parts of the aggregate.
type jsonColumns struct {
	config       string
	phases       string
	performances string
	adClips      string
	extensions   string
	override     sql.NullString
}

func marshalAggregate(tl *models.Timeline) (jsonColumns, error) {
	var cols jsonColumns
	var err error

	if cols.config, err = marshalJSON(tl.Config); err != nil {
		return cols, fmt.Errorf("encoding config: %w", err)
	}
	if cols.phases, err = marshalJSON(tl.Phases); err != nil {
		return cols, fmt.Errorf("encoding phases: %w", err)
	}
	if cols.performances, err = marshalJSON(emptySlice(tl.Performances)); err != nil {
		return cols, fmt.Errorf("encoding performances: %w", err)
	}
	if cols.adClips, err = marshalJSON(emptySlice(tl.AdClips)); err != nil {
		return cols, fmt.Errorf("encoding ad clips: %w", err)
	}
	if cols.extensions, err = marshalJSON(emptySlice(tl.TimeExtensions)); err != nil {
		return cols, fmt.Errorf("encoding time extensions: %w", err)
	}
	if tl.ManualOverride != nil {
		s, err := marshalJSON(tl.ManualOverride)
		if err != nil {
			return cols, fmt.Errorf("encoding manual override: %w", err)
		}
		cols.override = sql.NullString{String: s, Valid: true}
	}
	return cols, nil
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// emptySlice keeps nil slices from serializing as JSON null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTimeline(row scanner) (*models.Timeline, error) {
	var (
		tl                                 models.Timeline
		configJSON, phasesJSON             string
		performancesJSON, adClipsJSON      string
		extensionsJSON                     string
		overrideJSON                       sql.NullString
		isLive, isPaused                   int
		pausedAt, actualStart, nextEventAt sql.NullString
		scheduledStart                     string
		eventStatus                        string
		createdAt, updatedAt               string
	)

	err := row.Scan(&tl.ID, &tl.ShowcaseID, &configJSON, &phasesJSON,
		&performancesJSON, &adClipsJSON, &tl.CurrentPhase, &eventStatus,
		&isLive, &isPaused, &pausedAt, &tl.PausedBy, &actualStart,
		&scheduledStart, &nextEventAt, &tl.ViewerCount, &tl.PeakViewerCount,
		&extensionsJSON, &overrideJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning timeline: %w", err)
	}

	tl.EventStatus = models.EventStatus(eventStatus)
	tl.IsLive = isLive != 0
	tl.IsPaused = isPaused != 0

	if err := json.Unmarshal([]byte(configJSON), &tl.Config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := json.Unmarshal([]byte(phasesJSON), &tl.Phases); err != nil {
		return nil, fmt.Errorf("decoding phases: %w", err)
	}
	if err := json.Unmarshal([]byte(performancesJSON), &tl.Performances); err != nil {
		return nil, fmt.Errorf("decoding performances: %w", err)
	}
	if err := json.Unmarshal([]byte(adClipsJSON), &tl.AdClips); err != nil {
		return nil, fmt.Errorf("decoding ad clips: %w", err)
	}
	if err := json.Unmarshal([]byte(extensionsJSON), &tl.TimeExtensions); err != nil {
		return nil, fmt.Errorf("decoding time extensions: %w", err)
	}
	if overrideJSON.Valid && overrideJSON.String != "" {
		var o models.ManualOverride
		if err := json.Unmarshal([]byte(overrideJSON.String), &o); err != nil {
			return nil, fmt.Errorf("decoding manual override: %w", err)
		}
		tl.ManualOverride = &o
	}

	if tl.ScheduledStart, err = parseTime(scheduledStart); err != nil {
		return nil, fmt.Errorf("parsing scheduled_start: %w", err)
	}
	if tl.PausedAt, err = parseNullTime(pausedAt); err != nil {
		return nil, fmt.Errorf("parsing paused_at: %w", err)
	}
	if tl.ActualStartTime, err = parseNullTime(actualStart); err != nil {
		return nil, fmt.Errorf("parsing actual_start_time: %w", err)
	}
	if tl.NextEventAt, err = parseNullTime(nextEventAt); err != nil {
		return nil, fmt.Errorf("parsing next_event_at: %w", err)
	}
	if tl.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if tl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &tl, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
