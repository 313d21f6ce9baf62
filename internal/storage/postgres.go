package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// PostgresStorage implements Storage on postgres via database/sql.
type PostgresStorage struct {
	db *sql.DB
}

// Connect opens a postgres connection, verifies it with a ping and applies
// pool settings.
func Connect(connectionString string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresStorage{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS weather_readings (
	id            BIGSERIAL PRIMARY KEY,
	location_key  TEXT NOT NULL,
	city          TEXT NOT NULL,
	country       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
	ts            TIMESTAMPTZ NOT NULL,
	temperature_c DOUBLE PRECISION NOT NULL,
	humidity      DOUBLE PRECISION NOT NULL DEFAULT 0,
	pressure      DOUBLE PRECISION NOT NULL DEFAULT 0,
	wind_speed    DOUBLE PRECISION NOT NULL DEFAULT 0,
	wind_direction INTEGER NOT NULL DEFAULT 0,
	condition     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	icon          TEXT NOT NULL DEFAULT '',
	visibility    DOUBLE PRECISION NOT NULL DEFAULT 0,
	cloudiness    INTEGER NOT NULL DEFAULT 0,
	data_source   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_weather_readings_key_ts
	ON weather_readings (location_key, ts DESC);

CREATE TABLE IF NOT EXISTS aqi_readings (
	id           BIGSERIAL PRIMARY KEY,
	location_key TEXT NOT NULL,
	city         TEXT NOT NULL,
	country      TEXT NOT NULL DEFAULT '',
	ts           TIMESTAMPTZ NOT NULL,
	aqi          INTEGER NOT NULL,
	level        TEXT NOT NULL DEFAULT '',
	pm25         DOUBLE PRECISION NOT NULL DEFAULT 0,
	pm10         DOUBLE PRECISION NOT NULL DEFAULT 0,
	co           DOUBLE PRECISION NOT NULL DEFAULT 0,
	no2          DOUBLE PRECISION NOT NULL DEFAULT 0,
	so2          DOUBLE PRECISION NOT NULL DEFAULT 0,
	o3           DOUBLE PRECISION NOT NULL DEFAULT 0,
	data_source  TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_aqi_readings_key_ts
	ON aqi_readings (location_key, ts DESC);

CREATE TABLE IF NOT EXISTS forecasts (
	id            BIGSERIAL PRIMARY KEY,
	location_key  TEXT NOT NULL,
	city          TEXT NOT NULL,
	country       TEXT NOT NULL DEFAULT '',
	forecast_date DATE NOT NULL,
	temp_min      DOUBLE PRECISION NOT NULL,
	temp_max      DOUBLE PRECISION NOT NULL,
	temp_avg      DOUBLE PRECISION NOT NULL,
	humidity      INTEGER NOT NULL DEFAULT 0,
	wind_speed    DOUBLE PRECISION NOT NULL DEFAULT 0,
	condition     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	icon          TEXT NOT NULL DEFAULT '',
	precip_prob   DOUBLE PRECISION NOT NULL DEFAULT 0,
	precip_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	cloudiness    INTEGER NOT NULL DEFAULT 0,
	uv_index      INTEGER NOT NULL DEFAULT 0,
	sunrise       TIMESTAMPTZ,
	sunset        TIMESTAMPTZ,
	data_source   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (location_key, forecast_date)
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id               BIGSERIAL PRIMARY KEY,
	user_id          TEXT NOT NULL,
	email            TEXT NOT NULL,
	city             TEXT NOT NULL,
	country          TEXT NOT NULL DEFAULT '',
	location_key     TEXT NOT NULL,
	alert_types      TEXT[] NOT NULL DEFAULT '{}',
	thresholds       JSONB,
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_notified_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_key ON subscriptions (location_key);
`

// EnsureSchema creates tables and indexes if they do not exist. Called once
// at startup.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveWeatherReading inserts a reading and fills in its assigned id.
func (s *PostgresStorage) SaveWeatherReading(ctx context.Context, r *models.WeatherReading) error {
	query := `
		INSERT INTO weather_readings (
			location_key, city, country, latitude, longitude, ts,
			temperature_c, humidity, pressure, wind_speed, wind_direction,
			condition, description, icon, visibility, cloudiness,
			data_source, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id
	`
	return s.db.QueryRowContext(ctx, query,
		r.Location.Key(), r.Location.City, r.Location.Country,
		r.Location.Latitude, r.Location.Longitude, r.Timestamp,
		r.TemperatureCelsius, r.Humidity, r.Pressure, r.WindSpeed, r.WindDirection,
		r.Condition, r.Description, r.Icon, r.Visibility, r.Cloudiness,
		string(r.DataSource), r.CreatedAt,
	).Scan(&r.ID)
}

const weatherColumns = `
	id, city, country, latitude, longitude, ts, temperature_c, humidity,
	pressure, wind_speed, wind_direction, condition, description, icon,
	visibility, cloudiness, data_source, created_at`

func scanWeatherReading(row interface{ Scan(...any) error }) (*models.WeatherReading, error) {
	var r models.WeatherReading
	var source string
	err := row.Scan(
		&r.ID, &r.Location.City, &r.Location.Country,
		&r.Location.Latitude, &r.Location.Longitude, &r.Timestamp,
		&r.TemperatureCelsius, &r.Humidity, &r.Pressure,
		&r.WindSpeed, &r.WindDirection, &r.Condition, &r.Description,
		&r.Icon, &r.Visibility, &r.Cloudiness, &source, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.DataSource = models.DataSource(source)
	return &r, nil
}

// LatestWeatherReading returns the most recent reading for the key, with
// unbounded lookback. Returns (nil, nil) when none exists.
func (s *PostgresStorage) LatestWeatherReading(ctx context.Context, locationKey string) (*models.WeatherReading, error) {
	query := `SELECT` + weatherColumns + `
		FROM weather_readings WHERE location_key = $1
		ORDER BY ts DESC LIMIT 1`
	r, err := scanWeatherReading(s.db.QueryRowContext(ctx, query, locationKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// WeatherHistory returns readings for the key in [from, to], oldest first.
func (s *PostgresStorage) WeatherHistory(ctx context.Context, locationKey string, from, to time.Time) ([]models.WeatherReading, error) {
	query := `SELECT` + weatherColumns + `
		FROM weather_readings
		WHERE location_key = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, query, locationKey, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.WeatherReading
	for rows.Next() {
		r, err := scanWeatherReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// SaveAQIReading inserts an AQI reading and fills in its assigned id.
func (s *PostgresStorage) SaveAQIReading(ctx context.Context, r *models.AQIReading) error {
	query := `
		INSERT INTO aqi_readings (
			location_key, city, country, ts, aqi, level,
			pm25, pm10, co, no2, so2, o3, data_source, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id
	`
	return s.db.QueryRowContext(ctx, query,
		r.Location.Key(), r.Location.City, r.Location.Country,
		r.Timestamp, r.AQI, string(r.Level()),
		r.PM25, r.PM10, r.CO, r.NO2, r.SO2, r.O3,
		string(r.DataSource), r.CreatedAt,
	).Scan(&r.ID)
}

const aqiColumns = `
	id, city, country, ts, aqi, level, pm25, pm10, co, no2, so2, o3,
	data_source, created_at`

func scanAQIReading(row interface{ Scan(...any) error }) (*models.AQIReading, error) {
	var r models.AQIReading
	var level, source string
	err := row.Scan(
		&r.ID, &r.Location.City, &r.Location.Country, &r.Timestamp,
		&r.AQI, &level, &r.PM25, &r.PM10, &r.CO, &r.NO2, &r.SO2, &r.O3,
		&source, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.RawLevel = models.AQILevel(level)
	r.DataSource = models.DataSource(source)
	return &r, nil
}

// LatestAQIReading returns the most recent AQI reading for the key.
// Returns (nil, nil) when none exists.
func (s *PostgresStorage) LatestAQIReading(ctx context.Context, locationKey string) (*models.AQIReading, error) {
	query := `SELECT` + aqiColumns + `
		FROM aqi_readings WHERE location_key = $1
		ORDER BY ts DESC LIMIT 1`
	r, err := scanAQIReading(s.db.QueryRowContext(ctx, query, locationKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// AQIHistory returns AQI readings for the key in [from, to], oldest first.
func (s *PostgresStorage) AQIHistory(ctx context.Context, locationKey string, from, to time.Time) ([]models.AQIReading, error) {
	query := `SELECT` + aqiColumns + `
		FROM aqi_readings
		WHERE location_key = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, query, locationKey, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.AQIReading
	for rows.Next() {
		r, err := scanAQIReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// SaveForecast upserts the forecast for its (location, date) pair. The
// unique constraint keeps at most one forecast per calendar date.
func (s *PostgresStorage) SaveForecast(ctx context.Context, f *models.Forecast) error {
	query := `
		INSERT INTO forecasts (
			location_key, city, country, forecast_date,
			temp_min, temp_max, temp_avg, humidity, wind_speed,
			condition, description, icon, precip_prob, precip_amount,
			cloudiness, uv_index, sunrise, sunset, data_source, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (location_key, forecast_date) DO UPDATE SET
			temp_min = EXCLUDED.temp_min,
			temp_max = EXCLUDED.temp_max,
			temp_avg = EXCLUDED.temp_avg,
			humidity = EXCLUDED.humidity,
			wind_speed = EXCLUDED.wind_speed,
			condition = EXCLUDED.condition,
			description = EXCLUDED.description,
			icon = EXCLUDED.icon,
			precip_prob = EXCLUDED.precip_prob,
			precip_amount = EXCLUDED.precip_amount,
			cloudiness = EXCLUDED.cloudiness,
			uv_index = EXCLUDED.uv_index,
			sunrise = EXCLUDED.sunrise,
			sunset = EXCLUDED.sunset,
			data_source = EXCLUDED.data_source,
			created_at = EXCLUDED.created_at
		RETURNING id
	`
	return s.db.QueryRowContext(ctx, query,
		f.Location.Key(), f.Location.City, f.Location.Country, f.Date,
		f.TempMin, f.TempMax, f.TempAvg, f.Humidity, f.WindSpeed,
		f.Condition, f.Description, f.Icon,
		f.PrecipitationProbability, f.PrecipitationAmount,
		f.Cloudiness, f.UVIndex, nullTime(f.Sunrise), nullTime(f.Sunset),
		string(f.DataSource), f.CreatedAt,
	).Scan(&f.ID)
}

// Forecasts returns up to days stored forecasts for the key starting today,
// ordered by date.
func (s *PostgresStorage) Forecasts(ctx context.Context, locationKey string, days int) ([]models.Forecast, error) {
	query := `
		SELECT id, city, country, forecast_date, temp_min, temp_max, temp_avg,
		       humidity, wind_speed, condition, description, icon,
		       precip_prob, precip_amount, cloudiness, uv_index,
		       sunrise, sunset, data_source, created_at
		FROM forecasts
		WHERE location_key = $1 AND forecast_date >= CURRENT_DATE
		ORDER BY forecast_date ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, locationKey, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []models.Forecast
	for rows.Next() {
		var f models.Forecast
		var source string
		var sunrise, sunset sql.NullTime
		if err := rows.Scan(
			&f.ID, &f.Location.City, &f.Location.Country, &f.Date,
			&f.TempMin, &f.TempMax, &f.TempAvg, &f.Humidity, &f.WindSpeed,
			&f.Condition, &f.Description, &f.Icon,
			&f.PrecipitationProbability, &f.PrecipitationAmount,
			&f.Cloudiness, &f.UVIndex, &sunrise, &sunset, &source, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		if sunrise.Valid {
			f.Sunrise = sunrise.Time
		}
		if sunset.Valid {
			f.Sunset = sunset.Time
		}
		f.DataSource = models.DataSource(source)
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// SaveSubscription inserts a new subscription (ID zero) or fully replaces
// an existing one, filling in the assigned id on insert.
func (s *PostgresStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	thresholds, err := marshalThresholds(sub.Thresholds)
	if err != nil {
		return err
	}
	types := make([]string, len(sub.AlertTypes))
	for i, t := range sub.AlertTypes {
		types[i] = string(t)
	}

	if sub.ID == 0 {
		query := `
			INSERT INTO subscriptions (
				user_id, email, city, country, location_key,
				alert_types, thresholds, active, created_at, last_notified_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id
		`
		return s.db.QueryRowContext(ctx, query,
			sub.UserID, sub.Email, sub.Location.City, sub.Location.Country,
			sub.Location.Key(), pq.Array(types), thresholds,
			sub.Active, sub.CreatedAt, sub.LastNotifiedAt,
		).Scan(&sub.ID)
	}

	query := `
		UPDATE subscriptions SET
			user_id = $2, email = $3, city = $4, country = $5,
			location_key = $6, alert_types = $7, thresholds = $8,
			active = $9, last_notified_at = $10
		WHERE id = $1
	`
	_, err = s.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Email, sub.Location.City, sub.Location.Country,
		sub.Location.Key(), pq.Array(types), thresholds,
		sub.Active, sub.LastNotifiedAt,
	)
	return err
}

// nullTime maps the zero time to NULL so optional timestamps stay clean.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func marshalThresholds(t *models.AlertThresholds) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal thresholds: %w", err)
	}
	return raw, nil
}

// DeleteSubscription removes the subscription permanently.
func (s *PostgresStorage) DeleteSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	return err
}

const subscriptionColumns = `
	id, user_id, email, city, country, alert_types, thresholds, active,
	created_at, last_notified_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	var types pq.StringArray
	var thresholds []byte
	var lastNotified sql.NullTime
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Email,
		&sub.Location.City, &sub.Location.Country,
		&types, &thresholds, &sub.Active, &sub.CreatedAt, &lastNotified,
	)
	if err != nil {
		return nil, err
	}
	sub.AlertTypes = make([]models.AlertType, len(types))
	for i, t := range types {
		sub.AlertTypes[i] = models.AlertType(t)
	}
	if len(thresholds) > 0 {
		sub.Thresholds = &models.AlertThresholds{}
		if err := json.Unmarshal(thresholds, sub.Thresholds); err != nil {
			return nil, fmt.Errorf("unmarshal thresholds: %w", err)
		}
	}
	if lastNotified.Valid {
		sub.LastNotifiedAt = &lastNotified.Time
	}
	return &sub, nil
}

// SubscriptionByID returns the subscription, or (nil, nil) when unknown.
func (s *PostgresStorage) SubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

// SubscriptionsByUser returns all subscriptions owned by userID.
func (s *PostgresStorage) SubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM subscriptions WHERE user_id = $1 ORDER BY id`
	return s.querySubscriptions(ctx, query, userID)
}

// ActiveSubscriptions returns every active subscription, for the sweep.
func (s *PostgresStorage) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM subscriptions WHERE active = TRUE ORDER BY id`
	return s.querySubscriptions(ctx, query)
}

func (s *PostgresStorage) querySubscriptions(ctx context.Context, query string, args ...any) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// UpdateLastNotified stamps the subscription's last notification time.
func (s *PostgresStorage) UpdateLastNotified(ctx context.Context, id int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_notified_at = $2 WHERE id = $1`, id, t)
	return err
}

// Ping checks database reachability. Used for health checks.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool. Call during shutdown.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
