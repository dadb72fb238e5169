package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"call-assist-service/config"
	"call-assist-service/models"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
)

// ErrCallNotFound is returned when a call id does not exist
var ErrCallNotFound = errors.New("call not found")

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Printf("Database connection established to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// NewDatabaseFromConn wraps an existing connection, used by tests
func NewDatabaseFromConn(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// CreateTables creates the calls and call_transcripts tables if they don't exist
func (d *Database) CreateTables() error {
	callsTable := `
	CREATE TABLE IF NOT EXISTS calls (
		id CHAR(36) NOT NULL PRIMARY KEY,
		start_time TIMESTAMP(6) NOT NULL,
		end_time TIMESTAMP(6) NULL DEFAULT NULL,
		caller_info VARCHAR(255) NULL,
		report TEXT NULL,
		INDEX idx_calls_start_time (start_time)
	)`

	if _, err := d.db.Exec(callsTable); err != nil {
		return fmt.Errorf("failed to create calls table: %w", err)
	}

	transcriptsTable := `
	CREATE TABLE IF NOT EXISTS call_transcripts (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		call_id CHAR(36) NOT NULL,
		ts TIMESTAMP(6) NOT NULL,
		text TEXT NOT NULL,
		is_final BOOLEAN NOT NULL DEFAULT FALSE,
		INDEX idx_call_transcripts_call_ts (call_id, ts),
		CONSTRAINT fk_call_transcripts_call FOREIGN KEY (call_id)
			REFERENCES calls(id) ON DELETE CASCADE
	)`

	if _, err := d.db.Exec(transcriptsTable); err != nil {
		return fmt.Errorf("failed to create call_transcripts table: %w", err)
	}

	log.Println("calls and call_transcripts tables created/verified successfully")
	return nil
}

// CreateCall creates a new call record with a generated id and start time
func (d *Database) CreateCall(callerInfo string) (*models.Call, error) {
	call := &models.Call{
		ID:         uuid.New().String(),
		StartTime:  time.Now().UTC(),
		CallerInfo: callerInfo,
	}

	query := `INSERT INTO calls (id, start_time, caller_info) VALUES (?, ?, ?)`
	if _, err := d.db.Exec(query, call.ID, call.StartTime, callerInfo); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	return call, nil
}

// GetCall fetches a single call by id
func (d *Database) GetCall(id string) (*models.Call, error) {
	query := `SELECT id, start_time, end_time, caller_info, report FROM calls WHERE id = ?`

	var call models.Call
	var endTime sql.NullTime
	var callerInfo sql.NullString
	var reportJSON sql.NullString

	err := d.db.QueryRow(query, id).Scan(
		&call.ID,
		&call.StartTime,
		&endTime,
		&callerInfo,
		&reportJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to fetch call %s: %w", id, err)
	}

	if endTime.Valid {
		t := endTime.Time
		call.EndTime = &t
	}
	call.CallerInfo = callerInfo.String
	if reportJSON.Valid && reportJSON.String != "" {
		var result models.ReportResult
		if err := json.Unmarshal([]byte(reportJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to decode stored report for call %s: %w", id, err)
		}
		call.Report = &result
	}
	return &call, nil
}

// ListCalls returns all calls ordered by start time, newest first
func (d *Database) ListCalls() ([]models.Call, error) {
	query := `SELECT id, start_time, end_time, caller_info, report FROM calls ORDER BY start_time DESC`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		var call models.Call
		var endTime sql.NullTime
		var callerInfo sql.NullString
		var reportJSON sql.NullString

		if err := rows.Scan(&call.ID, &call.StartTime, &endTime, &callerInfo, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		if endTime.Valid {
			t := endTime.Time
			call.EndTime = &t
		}
		call.CallerInfo = callerInfo.String
		if reportJSON.Valid && reportJSON.String != "" {
			var result models.ReportResult
			if err := json.Unmarshal([]byte(reportJSON.String), &result); err != nil {
				return nil, fmt.Errorf("failed to decode stored report for call %s: %w", call.ID, err)
			}
			call.Report = &result
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calls: %w", err)
	}
	return calls, nil
}

// UpdateCall updates a call's caller info
func (d *Database) UpdateCall(id, callerInfo string) error {
	query := `UPDATE calls SET caller_info = ? WHERE id = ?`

	result, err := d.db.Exec(query, callerInfo, id)
	if err != nil {
		return fmt.Errorf("failed to update call %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// RowsAffected is also 0 when the value did not change, distinguish
		// via existence check
		if _, err := d.GetCall(id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCall removes a call; its transcript segments go with it via the
// cascading foreign key
func (d *Database) DeleteCall(id string) error {
	query := `DELETE FROM calls WHERE id = ?`

	result, err := d.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete call %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCallNotFound
	}
	return nil
}

// FinalizeCall sets the call's end time and stores the report result
func (d *Database) FinalizeCall(id string, endTime time.Time, result models.ReportResult) error {
	reportJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode report for call %s: %w", id, err)
	}

	query := `UPDATE calls SET end_time = ?, report = ? WHERE id = ?`
	if _, err := d.db.Exec(query, endTime, string(reportJSON), id); err != nil {
		return fmt.Errorf("failed to finalize call %s: %w", id, err)
	}
	return nil
}

// AppendTranscript creates one transcript segment for a call
func (d *Database) AppendTranscript(callID string, ts time.Time, text string, isFinal bool) (*models.TranscriptSegment, error) {
	query := `INSERT INTO call_transcripts (call_id, ts, text, is_final) VALUES (?, ?, ?, ?)`

	result, err := d.db.Exec(query, callID, ts, text, isFinal)
	if err != nil {
		return nil, fmt.Errorf("failed to append transcript for call %s: %w", callID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript id: %w", err)
	}

	return &models.TranscriptSegment{
		ID:        id,
		CallID:    callID,
		Timestamp: ts,
		Text:      text,
		IsFinal:   isFinal,
	}, nil
}

// ListTranscripts returns all segments for a call ordered by timestamp, with
// insertion order breaking ties
func (d *Database) ListTranscripts(callID string) ([]models.TranscriptSegment, error) {
	query := `
	SELECT id, call_id, ts, text, is_final
	FROM call_transcripts
	WHERE call_id = ?
	ORDER BY ts ASC, id ASC`

	rows, err := d.db.Query(query, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts for call %s: %w", callID, err)
	}
	defer rows.Close()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.CallID, &seg.Timestamp, &seg.Text, &seg.IsFinal); err != nil {
			return nil, fmt.Errorf("failed to scan transcript segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript segments: %w", err)
	}
	return segments, nil
}

// ConcatenateTranscripts joins all segment texts for a call in timestamp
// order, separated by newlines. Pure read, no state mutation.
func (d *Database) ConcatenateTranscripts(callID string) (string, error) {
	segments, err := d.ListTranscripts(callID)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, "\n"), nil
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}
