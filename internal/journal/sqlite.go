package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
)

const (
	tableEvents        = "agent_events"
	tableInterventions = "agent_interventions"
	tableOutcomes      = "notification_outcomes"
)

// SQLite implements Journal on a single SQLite file.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ Journal = (*SQLite)(nil)

// OpenSQLite opens (or creates) a SQLite database at the given path.
func OpenSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db, logger: stoiclog.WithComponent("journal")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) AppendEvent(ctx context.Context, e model.Event) error {
	meta, err := encodeJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_events (event_id, type, source, severity, value, metadata, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Source, int(e.Severity), e.Value, meta, e.Timestamp.UnixMilli(),
	)
	metrics.IncJournalWrite(tableEvents, err)
	return err
}

func (s *SQLite) AppendIntervention(ctx context.Context, iv model.Intervention) error {
	params, err := encodeJSON(iv.Parameters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_interventions (intervention_id, type, source, reason, urgency, parameters, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, string(iv.Type), iv.Source, iv.Reason, iv.Urgency, params, iv.Timestamp.UnixMilli(),
	)
	metrics.IncJournalWrite(tableInterventions, err)
	return err
}

func (s *SQLite) RecordFeedback(ctx context.Context, f model.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_outcomes (intervention_id, intervention_type, sink, delivered, action, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.InterventionID, string(f.InterventionType), nullable(f.Sink), f.Delivered, nullable(f.Action), nullable(f.Error), f.Timestamp.UnixMilli(),
	)
	metrics.IncJournalWrite(tableOutcomes, err)
	return err
}

func (s *SQLite) RecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, type, source, severity, value, metadata, occurred_at FROM (
			SELECT * FROM agent_events ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e        model.Event
			typ      string
			severity int
			value    sql.NullFloat64
			meta     sql.NullString
			at       int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.Source, &severity, &value, &meta, &at); err != nil {
			return nil, err
		}
		e.Type = model.EventType(typ)
		e.Severity = model.Severity(severity)
		e.Timestamp = time.UnixMilli(at)
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				e.Metadata = nil
				s.logger.Warn().Err(err).Str("event", "journal.decode_failed").Str("table", tableEvents).Str("id", e.ID).
					Msg("stored metadata is unreadable, returning row without it")
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) RecentInterventions(ctx context.Context, limit int) ([]model.Intervention, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT intervention_id, type, source, reason, urgency, parameters, created_at FROM (
			SELECT * FROM agent_interventions ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Intervention
	for rows.Next() {
		var (
			iv     model.Intervention
			typ    string
			params sql.NullString
			at     int64
		)
		if err := rows.Scan(&iv.ID, &typ, &iv.Source, &iv.Reason, &iv.Urgency, &params, &at); err != nil {
			return nil, err
		}
		iv.Type = model.InterventionType(typ)
		iv.Timestamp = time.UnixMilli(at)
		if params.Valid {
			if err := json.Unmarshal([]byte(params.String), &iv.Parameters); err != nil {
				iv.Parameters = nil
				s.logger.Warn().Err(err).Str("event", "journal.decode_failed").Str("table", tableInterventions).Str("id", iv.ID).
					Msg("stored parameters are unreadable, returning row without them")
			}
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// FeedbackFor returns every recorded outcome for one intervention.
func (s *SQLite) FeedbackFor(ctx context.Context, interventionID string) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT intervention_id, intervention_type, sink, delivered, action, error, recorded_at
		FROM notification_outcomes WHERE intervention_id = ? ORDER BY id ASC`,
		interventionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Feedback
	for rows.Next() {
		var (
			f                  model.Feedback
			typ                string
			sink, action, fErr sql.NullString
			at                 int64
		)
		if err := rows.Scan(&f.InterventionID, &typ, &sink, &f.Delivered, &action, &fErr, &at); err != nil {
			return nil, err
		}
		f.InterventionType = model.InterventionType(typ)
		f.Sink, f.Action, f.Error = sink.String, action.String, fErr.String
		f.Timestamp = time.UnixMilli(at)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func encodeJSON(m model.Metadata) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	str := string(data)
	return &str, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
