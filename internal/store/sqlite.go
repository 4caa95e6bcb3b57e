package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS visitor_tracking (
	visitor_id TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL,
	phone            TEXT,
	address          TEXT,
	source           TEXT NOT NULL,
	message          TEXT,
	first_touch      TEXT,
	latest_touch     TEXT,
	converting_touch TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS inquiries (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL,
	phone        TEXT,
	program      TEXT NOT NULL,
	first_touch  TEXT,
	latest_touch TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS meetings (
	id            TEXT PRIMARY KEY,
	event_uri     TEXT NOT NULL UNIQUE,
	invitee_name  TEXT,
	invitee_email TEXT,
	event_type    TEXT,
	start_time    DATETIME,
	status        TEXT NOT NULL DEFAULT 'scheduled',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parcels (
	apn          TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	city         TEXT,
	state        TEXT,
	zip          TEXT,
	area_sqft    REAL,
	centroid_lat REAL,
	centroid_lon REAL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_inquiries_program ON inquiries(program);
CREATE INDEX IF NOT EXISTS idx_parcels_address ON parcels(address);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetTracking(ctx context.Context, visitorID string) (attribution.StoredTracking, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM visitor_tracking WHERE visitor_id = ?`,
		visitorID,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return attribution.StoredTracking{}, nil
	}
	if err != nil {
		return attribution.StoredTracking{}, eris.Wrap(err, "sqlite: get tracking")
	}

	var rec attribution.StoredTracking
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		// Corrupt state is discarded, not repaired.
		zap.L().Warn("sqlite: discarding malformed tracking record",
			zap.String("visitor_id", visitorID),
		)
		return attribution.StoredTracking{}, nil
	}
	return rec, nil
}

func (s *SQLiteStore) PutTracking(ctx context.Context, visitorID string, rec attribution.StoredTracking) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tracking")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visitor_tracking (visitor_id, record, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(visitor_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		visitorID, string(recordJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put tracking %s", visitorID)
}

func (s *SQLiteStore) ClearTracking(ctx context.Context, visitorID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM visitor_tracking WHERE visitor_id = ?`,
		visitorID,
	)
	return eris.Wrapf(err, "sqlite: clear tracking %s", visitorID)
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	lead.ID = uuid.New().String()
	lead.CreatedAt = time.Now().UTC()

	first, err := marshalTouch(lead.FirstTouch)
	if err != nil {
		return nil, err
	}
	latest, err := marshalTouch(lead.LatestTouch)
	if err != nil {
		return nil, err
	}
	converting, err := marshalTouch(lead.ConvertingTouch)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Address, lead.Source, lead.Message,
		first, latest, converting, lead.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at
		 FROM leads WHERE id = ?`,
		id,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at
	          FROM leads WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CreateInquiry(ctx context.Context, inq model.Inquiry) (*model.Inquiry, error) {
	inq.ID = uuid.New().String()
	inq.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inquiries (id, name, email, phone, program, first_touch, latest_touch, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inq.ID, inq.Name, inq.Email, inq.Phone, inq.Program,
		nullIfEmpty(inq.FirstTouch), nullIfEmpty(inq.LatestTouch), inq.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert inquiry")
	}
	return &inq, nil
}

func (s *SQLiteStore) UpsertMeeting(ctx context.Context, m model.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, event_uri, invitee_name, invitee_email, event_type, start_time, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_uri) DO UPDATE SET
		   invitee_name = excluded.invitee_name,
		   invitee_email = excluded.invitee_email,
		   event_type = excluded.event_type,
		   start_time = excluded.start_time,
		   status = excluded.status`,
		m.ID, m.EventURI, m.InviteeName, m.InviteeEmail, m.EventType, m.StartTime, string(m.Status), m.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert meeting")
}

func (s *SQLiteStore) CancelMeeting(ctx context.Context, eventURI string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ? WHERE event_uri = ?`,
		string(model.MeetingCanceled), eventURI,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: cancel meeting %s", eventURI)
	}
	return checkRowsAffected(res, "meeting", eventURI)
}

func (s *SQLiteStore) FindParcelByAddress(ctx context.Context, address string) (*model.Parcel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT apn, address, city, state, zip, area_sqft, centroid_lat, centroid_lon, updated_at
		 FROM parcels WHERE address = ? COLLATE NOCASE LIMIT 1`,
		address,
	)

	var p model.Parcel
	err := row.Scan(&p.APN, &p.Address, &p.City, &p.State, &p.Zip,
		&p.AreaSqFt, &p.CentroidLat, &p.CentroidLon, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find parcel")
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertParcels(ctx context.Context, parcels []model.Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert parcels begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parcels (apn, address, city, state, zip, area_sqft, centroid_lat, centroid_lon, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(apn) DO UPDATE SET
		   address = excluded.address, city = excluded.city, state = excluded.state,
		   zip = excluded.zip, area_sqft = excluded.area_sqft,
		   centroid_lat = excluded.centroid_lat, centroid_lon = excluded.centroid_lon,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare parcel upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, p := range parcels {
		if _, err := stmt.ExecContext(ctx, p.APN, p.Address, p.City, p.State, p.Zip,
			p.AreaSqFt, p.CentroidLat, p.CentroidLon, now); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert parcel %s", p.APN)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: upsert parcels commit")
	}
	return n, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalTouch(p *attribution.TrackingParams) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "marshal touch")
	}
	return string(b), nil
}

func unmarshalTouch(s sql.NullString) (*attribution.TrackingParams, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var p attribution.TrackingParams
	if err := json.Unmarshal([]byte(s.String), &p); err != nil {
		return nil, eris.Wrap(err, "unmarshal touch")
	}
	return &p, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var phone, address, message sql.NullString
	var first, latest, converting sql.NullString

	err := row.Scan(&l.ID, &l.Name, &l.Email, &phone, &address, &l.Source, &message,
		&first, &latest, &converting, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}

	l.Phone = phone.String
	l.Address = address.String
	l.Message = message.String

	if l.FirstTouch, err = unmarshalTouch(first); err != nil {
		return nil, err
	}
	if l.LatestTouch, err = unmarshalTouch(latest); err != nil {
		return nil, err
	}
	if l.ConvertingTouch, err = unmarshalTouch(converting); err != nil {
		return nil, err
	}
	return &l, nil
}
