package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/nestlog/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// StoredRecord is an aligned row with its storage metadata
type StoredRecord struct {
	ID int
	models.AlignedRecord
	Published bool
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS aligned_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL UNIQUE,
		window_start INTEGER NOT NULL DEFAULT 0,
		indoor_temp_f REAL,
		target_temp_f REAL,
		hvac_state TEXT NOT NULL,
		outdoor_temp_f REAL,
		outdoor_humidity REAL,
		kwh REAL NOT NULL,
		cost REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_aligned_published ON aligned_data(published);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Add columns to existing tables (migration). Rows stored before
	// window_start existed get their UTC hour until the next align rewrites them.
	if _, err := db.conn.Exec(`ALTER TABLE aligned_data ADD COLUMN window_start INTEGER NOT NULL DEFAULT 0`); err == nil {
		if _, err := db.conn.Exec(`UPDATE aligned_data SET window_start = timestamp - timestamp % 3600`); err != nil {
			return fmt.Errorf("backfilling window_start: %w", err)
		}
	}
	_, err := db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_aligned_window ON aligned_data(window_start)`)
	return err
}

// SaveAligned stores a merged dataset in one transaction. Rows already
// present for a timestamp are overwritten; their published flag is kept
// unless the usage values changed.
func (db *DB) SaveAligned(records []models.AlignedRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO aligned_data (timestamp, window_start, indoor_temp_f, target_temp_f, hvac_state, outdoor_temp_f, outdoor_humidity, kwh, cost, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(timestamp) DO UPDATE SET
		indoor_temp_f = excluded.indoor_temp_f,
		target_temp_f = excluded.target_temp_f,
		hvac_state = excluded.hvac_state,
		outdoor_temp_f = excluded.outdoor_temp_f,
		outdoor_humidity = excluded.outdoor_humidity,
		published = CASE WHEN kwh = excluded.kwh AND cost = excluded.cost AND window_start = excluded.window_start THEN published ELSE 0 END,
		window_start = excluded.window_start,
		kwh = excluded.kwh,
		cost = excluded.cost
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		_, err := stmt.Exec(r.Timestamp, r.WindowStart, nullFloat(r.IndoorTempF), nullFloat(r.TargetTempF), string(r.HVACState),
			nullFloat(r.OutdoorTempF), nullFloat(r.OutdoorHumidity), r.KWh, r.Cost, createdAt)
		if err != nil {
			return fmt.Errorf("inserting aligned row %d: %w", r.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing aligned rows: %w", err)
	}
	return nil
}

// ListAligned retrieves stored rows with timestamps in [since, until),
// ordered by timestamp. A zero bound is open.
func (db *DB) ListAligned(since, until int64) ([]StoredRecord, error) {
	query := `
	SELECT id, timestamp, window_start, indoor_temp_f, target_temp_f, hvac_state, outdoor_temp_f, outdoor_humidity, kwh, cost, published
	FROM aligned_data
	WHERE (? = 0 OR timestamp >= ?) AND (? = 0 OR timestamp < ?)
	ORDER BY timestamp ASC
	`
	return db.query(query, since, since, until, until)
}

// ListUnpublished retrieves rows not yet published, ordered by timestamp
func (db *DB) ListUnpublished() ([]StoredRecord, error) {
	query := `
	SELECT id, timestamp, window_start, indoor_temp_f, target_temp_f, hvac_state, outdoor_temp_f, outdoor_humidity, kwh, cost, published
	FROM aligned_data
	WHERE published = 0
	ORDER BY timestamp ASC
	`
	return db.query(query)
}

func (db *DB) query(query string, args ...any) ([]StoredRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying aligned data: %w", err)
	}
	defer rows.Close()

	var results []StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var indoor, target, outdoor, humidity sql.NullFloat64
		var state string

		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.WindowStart, &indoor, &target, &state, &outdoor, &humidity, &rec.KWh, &rec.Cost, &rec.Published); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		rec.HVACState = models.HVACState(state)
		rec.IndoorTempF = floatPtr(indoor)
		rec.TargetTempF = floatPtr(target)
		rec.OutdoorTempF = floatPtr(outdoor)
		rec.OutdoorHumidity = floatPtr(humidity)
		results = append(results, rec)
	}

	return results, rows.Err()
}

// MarkPublished marks a row as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE aligned_data SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

// Count returns the number of stored rows
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM aligned_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting aligned data: %w", err)
	}
	return n, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
