package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

var _ repo.PolicyStore = (*Store)(nil)
var _ repo.ChannelConfigStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)
var _ repo.DeliveryLogStore = (*Store)(nil)
var _ repo.ReadingStore = (*Store)(nil)

// Config documents live in a small key/value table keyed by name
// ("alerts", "twilio", "whatsapp"), body stored as jsonb — mirrors the
// config/* documents the dashboard reads.
const (
	configKeyPolicy   = "alerts"
	configKeyTwilio   = "twilio"
	configKeyWhatsApp = "whatsapp"
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- PolicyStore ----

func (s *Store) Get(ctx context.Context) (domain.AlertPolicy, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM configs WHERE key=$1`, configKeyPolicy).Scan(&body)
	if err == pgx.ErrNoRows {
		p := domain.DefaultPolicy()
		if putErr := s.Put(ctx, p); putErr != nil {
			s.log.Warn("policy_default_persist_failed", zap.Error(putErr))
		}
		return p, nil
	}
	if err != nil {
		// degrade: the caller gets a usable policy even when the DB is down
		s.log.Warn("policy_read_failed", zap.Error(err))
		return domain.DefaultPolicy(), nil
	}
	var p domain.AlertPolicy
	if err := json.Unmarshal(body, &p); err != nil {
		s.log.Warn("policy_decode_failed", zap.Error(err))
		return domain.DefaultPolicy(), nil
	}
	return p, nil
}

func (s *Store) Put(ctx context.Context, p domain.AlertPolicy) error {
	return s.putConfig(ctx, configKeyPolicy, p)
}

func (s *Store) Patch(ctx context.Context, pp domain.PolicyPatch) (domain.AlertPolicy, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return domain.AlertPolicy{}, err
	}
	merged := pp.Apply(cur)
	if err := s.Put(ctx, merged); err != nil {
		return domain.AlertPolicy{}, err
	}
	return merged, nil
}

// ---- ChannelConfigStore ----

func (s *Store) GetTwilio(ctx context.Context) (domain.TwilioConfig, error) {
	var c domain.TwilioConfig
	ok, err := s.getConfig(ctx, configKeyTwilio, &c)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("twilio_config_read_failed", zap.Error(err))
		}
		def := domain.DefaultTwilioConfig()
		if !ok && err == nil {
			if putErr := s.PutTwilio(ctx, def); putErr != nil {
				s.log.Warn("twilio_default_persist_failed", zap.Error(putErr))
			}
		}
		return def, nil
	}
	return c, nil
}

func (s *Store) PutTwilio(ctx context.Context, c domain.TwilioConfig) error {
	return s.putConfig(ctx, configKeyTwilio, c)
}

func (s *Store) GetWhatsApp(ctx context.Context) (domain.WhatsAppConfig, error) {
	var c domain.WhatsAppConfig
	ok, err := s.getConfig(ctx, configKeyWhatsApp, &c)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("whatsapp_config_read_failed", zap.Error(err))
		}
		def := domain.DefaultWhatsAppConfig()
		if !ok && err == nil {
			if putErr := s.PutWhatsApp(ctx, def); putErr != nil {
				s.log.Warn("whatsapp_default_persist_failed", zap.Error(putErr))
			}
		}
		return def, nil
	}
	return c, nil
}

func (s *Store) PutWhatsApp(ctx context.Context, c domain.WhatsAppConfig) error {
	return s.putConfig(ctx, configKeyWhatsApp, c)
}

func (s *Store) getConfig(ctx context.Context, key string, out any) (bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM configs WHERE key=$1`, key).Scan(&body)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode config %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putConfig(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO configs (key, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET body=EXCLUDED.body, updated_at=EXCLUDED.updated_at`,
		key, body)
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}

// ---- AlertStore ----

func (s *Store) Create(ctx context.Context, a *domain.Alert) (domain.AlertID, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ID = domain.AlertID(makeID(a.CreatedAt))
	a.Sent = false
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts
		  (id, sensor_id, metric, value, threshold, message, created_at, sent, dest_kind, dest_addr)
		VALUES
		  ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)`,
		string(a.ID), a.SensorID, string(a.Metric), a.Value, a.Threshold,
		a.Message, a.CreatedAt, string(a.Destination.Kind), a.Destination.Addr,
	)
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return a.ID, nil
}

func (s *Store) ListUnsent(ctx context.Context) ([]domain.Alert, error) {
	return s.listAlerts(ctx, `
		SELECT id, sensor_id, metric, value, threshold, message, created_at, sent, dest_kind, dest_addr
		  FROM alerts
		 WHERE sent = false`)
}

func (s *Store) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	return s.listAlerts(ctx, `
		SELECT id, sensor_id, metric, value, threshold, message, created_at, sent, dest_kind, dest_addr
		  FROM alerts
		 ORDER BY created_at DESC, id DESC`)
}

func (s *Store) listAlerts(ctx context.Context, q string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			id       string
			metric   string
			destKind string
		)
		if err := rows.Scan(&id, &a.SensorID, &metric, &a.Value, &a.Threshold,
			&a.Message, &a.CreatedAt, &a.Sent, &destKind, &a.Destination.Addr); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ID = domain.AlertID(id)
		a.Metric = domain.Metric(metric)
		a.Destination.Kind = domain.DestinationKind(destKind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id domain.AlertID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET sent = true WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark sent %s: %w", id, repo.ErrNotFound)
	}
	return nil
}

// ---- DeliveryLogStore ----

func (s *Store) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_logs (id, channel, destination, message, ts, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Channel, e.Destination, e.Message, e.Timestamp, string(e.Status), e.Detail)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status domain.DeliveryStatus, detail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE delivery_logs SET status=$2, detail=$3 WHERE id=$1`,
		id, string(status), detail)
	if err != nil {
		return fmt.Errorf("update delivery log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery log %s: %w", id, repo.ErrNotFound)
	}
	return nil
}

// ---- ReadingStore ----

func (s *Store) UpsertReading(ctx context.Context, r *domain.Reading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO readings (sensor_id, temperature, humidity, pressure, rssi, uptime_sec, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sensor_id)
		DO UPDATE SET temperature=EXCLUDED.temperature, humidity=EXCLUDED.humidity,
		              pressure=EXCLUDED.pressure, rssi=EXCLUDED.rssi,
		              uptime_sec=EXCLUDED.uptime_sec, ts=EXCLUDED.ts`,
		r.SensorID, r.Temperature, r.Humidity, r.Pressure, r.RSSI, r.UptimeSec, r.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert reading: %w", err)
	}
	return nil
}

func (s *Store) ListReadings(ctx context.Context) ([]domain.Reading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sensor_id, temperature, humidity, pressure, rssi, uptime_sec, ts
		  FROM readings
		 ORDER BY sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		var r domain.Reading
		if err := rows.Scan(&r.SensorID, &r.Temperature, &r.Humidity, &r.Pressure,
			&r.RSSI, &r.UptimeSec, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ID format shared with the memory store: 20060102Thhmmss.nnnnnnnnn
func makeID(at time.Time) string {
	now := at.UTC()
	return now.Format("20060102T150405.") + fmt.Sprintf("%09d", now.Nanosecond())
}
