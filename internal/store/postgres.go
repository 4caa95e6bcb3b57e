package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/db"
	"github.com/access-realty/directlist/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_tracking":   `SELECT record FROM visitor_tracking WHERE visitor_id = $1`,
	"put_tracking":   `INSERT INTO visitor_tracking (visitor_id, record, updated_at) VALUES ($1, $2, $3) ON CONFLICT (visitor_id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
	"clear_tracking": `DELETE FROM visitor_tracking WHERE visitor_id = $1`,
	"insert_lead":    `INSERT INTO leads (id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"find_parcel":    `SELECT apn, address, city, state, zip, area_sqft, centroid_lat, centroid_lon, updated_at FROM parcels WHERE lower(address) = lower($1) LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (the parcel bulk loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS visitor_tracking (
	visitor_id TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL,
	phone            TEXT,
	address          TEXT,
	source           TEXT NOT NULL,
	message          TEXT,
	first_touch      JSONB,
	latest_touch     JSONB,
	converting_touch JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inquiries (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL,
	phone        TEXT,
	program      TEXT NOT NULL,
	first_touch  TEXT,
	latest_touch TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	event_uri     TEXT NOT NULL UNIQUE,
	invitee_name  TEXT,
	invitee_email TEXT,
	event_type    TEXT,
	start_time    TIMESTAMPTZ,
	status        TEXT NOT NULL DEFAULT 'scheduled',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS parcels (
	apn          TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	city         TEXT,
	state        TEXT,
	zip          TEXT,
	area_sqft    DOUBLE PRECISION,
	centroid_lat DOUBLE PRECISION,
	centroid_lon DOUBLE PRECISION,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_inquiries_program ON inquiries(program);
CREATE INDEX IF NOT EXISTS idx_parcels_address ON parcels(lower(address));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetTracking(ctx context.Context, visitorID string) (attribution.StoredTracking, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM visitor_tracking WHERE visitor_id = $1`,
		visitorID,
	).Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return attribution.StoredTracking{}, nil
	}
	if err != nil {
		return attribution.StoredTracking{}, eris.Wrap(err, "postgres: get tracking")
	}

	var rec attribution.StoredTracking
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		zap.L().Warn("postgres: discarding malformed tracking record",
			zap.String("visitor_id", visitorID),
		)
		return attribution.StoredTracking{}, nil
	}
	return rec, nil
}

func (s *PostgresStore) PutTracking(ctx context.Context, visitorID string, rec attribution.StoredTracking) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tracking")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO visitor_tracking (visitor_id, record, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (visitor_id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		visitorID, recordJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put tracking %s", visitorID)
}

func (s *PostgresStore) ClearTracking(ctx context.Context, visitorID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM visitor_tracking WHERE visitor_id = $1`,
		visitorID,
	)
	return eris.Wrapf(err, "postgres: clear tracking %s", visitorID)
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	lead.ID = uuid.New().String()
	lead.CreatedAt = time.Now().UTC()

	first, err := marshalTouchJSONB(lead.FirstTouch)
	if err != nil {
		return nil, err
	}
	latest, err := marshalTouchJSONB(lead.LatestTouch)
	if err != nil {
		return nil, err
	}
	converting, err := marshalTouchJSONB(lead.ConvertingTouch)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lead.ID, lead.Name, lead.Email, nullIfEmpty(lead.Phone), nullIfEmpty(lead.Address),
		lead.Source, nullIfEmpty(lead.Message), first, latest, converting, lead.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at
		 FROM leads WHERE id = $1`,
		id,
	)
	return scanLeadPg(row)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, name, email, phone, address, source, message, first_touch, latest_touch, converting_touch, created_at
	          FROM leads WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Source != "" {
		query += ` AND source = ` + arg(filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadPg(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CreateInquiry(ctx context.Context, inq model.Inquiry) (*model.Inquiry, error) {
	inq.ID = uuid.New().String()
	inq.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO inquiries (id, name, email, phone, program, first_touch, latest_touch, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inq.ID, inq.Name, inq.Email, nullIfEmpty(inq.Phone), inq.Program,
		nullIfEmpty(inq.FirstTouch), nullIfEmpty(inq.LatestTouch), inq.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert inquiry")
	}
	return &inq, nil
}

func (s *PostgresStore) UpsertMeeting(ctx context.Context, m model.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO meetings (id, event_uri, invitee_name, invitee_email, event_type, start_time, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (event_uri) DO UPDATE SET
		   invitee_name = EXCLUDED.invitee_name,
		   invitee_email = EXCLUDED.invitee_email,
		   event_type = EXCLUDED.event_type,
		   start_time = EXCLUDED.start_time,
		   status = EXCLUDED.status`,
		m.ID, m.EventURI, m.InviteeName, m.InviteeEmail, m.EventType, m.StartTime, string(m.Status), m.CreatedAt,
	)
	return eris.Wrap(err, "postgres: upsert meeting")
}

func (s *PostgresStore) CancelMeeting(ctx context.Context, eventURI string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE meetings SET status = $1 WHERE event_uri = $2`,
		string(model.MeetingCanceled), eventURI,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: cancel meeting %s", eventURI)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "meeting %s", eventURI)
	}
	return nil
}

func (s *PostgresStore) FindParcelByAddress(ctx context.Context, address string) (*model.Parcel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT apn, address, city, state, zip, area_sqft, centroid_lat, centroid_lon, updated_at
		 FROM parcels WHERE lower(address) = lower($1) LIMIT 1`,
		address,
	)

	var p model.Parcel
	err := row.Scan(&p.APN, &p.Address, &p.City, &p.State, &p.Zip,
		&p.AreaSqFt, &p.CentroidLat, &p.CentroidLon, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find parcel")
	}
	return &p, nil
}

func (s *PostgresStore) UpsertParcels(ctx context.Context, parcels []model.Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(parcels))
	for _, p := range parcels {
		rows = append(rows, []any{
			p.APN, p.Address, p.City, p.State, p.Zip,
			p.AreaSqFt, p.CentroidLat, p.CentroidLon, now,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "parcels",
		Columns:      []string{"apn", "address", "city", "state", "zip", "area_sqft", "centroid_lat", "centroid_lon", "updated_at"},
		ConflictKeys: []string{"apn"},
	}, rows)
}

// helpers

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func marshalTouchJSONB(p *attribution.TrackingParams) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "marshal touch")
	}
	return b, nil
}

func scanLeadPg(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var phone, address, message *string
	var first, latest, converting []byte

	err := row.Scan(&l.ID, &l.Name, &l.Email, &phone, &address, &l.Source, &message,
		&first, &latest, &converting, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "lead")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	if phone != nil {
		l.Phone = *phone
	}
	if address != nil {
		l.Address = *address
	}
	if message != nil {
		l.Message = *message
	}

	if l.FirstTouch, err = unmarshalTouchJSONB(first); err != nil {
		return nil, err
	}
	if l.LatestTouch, err = unmarshalTouchJSONB(latest); err != nil {
		return nil, err
	}
	if l.ConvertingTouch, err = unmarshalTouchJSONB(converting); err != nil {
		return nil, err
	}
	return &l, nil
}

func unmarshalTouchJSONB(b []byte) (*attribution.TrackingParams, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var p attribution.TrackingParams
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, eris.Wrap(err, "unmarshal touch")
	}
	return &p, nil
}
