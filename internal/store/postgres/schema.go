package postgres

// exportSchema bootstraps the tables the export engine owns. The hotel
// catalog tables are managed by the aggregation pipeline's migrations;
// they are created here only so a fresh development database is usable.
const exportSchema = `
CREATE TABLE IF NOT EXISTS export_jobs (
	id                TEXT PRIMARY KEY,
	user_id           BIGINT NOT NULL,
	kind              TEXT NOT NULL,
	format            TEXT NOT NULL,
	criteria          JSONB NOT NULL DEFAULT '{}',
	status            TEXT NOT NULL DEFAULT 'pending',
	progress          INT NOT NULL DEFAULT 0,
	processed_records BIGINT NOT NULL DEFAULT 0,
	total_records     BIGINT NOT NULL DEFAULT 0,
	file_path         TEXT,
	file_size         BIGINT,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at        TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ,
	expires_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS export_jobs_user_idx ON export_jobs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS export_jobs_expires_idx ON export_jobs (expires_at) WHERE file_path IS NOT NULL;

CREATE TABLE IF NOT EXISTS data_sources (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	disabled BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS user_source_grants (
	user_id   BIGINT NOT NULL,
	source_id TEXT NOT NULL REFERENCES data_sources (id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, source_id)
);

CREATE TABLE IF NOT EXISTS hotels (
	id           BIGSERIAL PRIMARY KEY,
	source_id    TEXT NOT NULL REFERENCES data_sources (id),
	name         TEXT NOT NULL,
	country_code TEXT NOT NULL,
	city         TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS hotels_source_idx ON hotels (source_id, id);

CREATE TABLE IF NOT EXISTS hotel_locations (
	id        BIGSERIAL PRIMARY KEY,
	hotel_id  BIGINT NOT NULL REFERENCES hotels (id) ON DELETE CASCADE,
	address   TEXT NOT NULL,
	latitude  DOUBLE PRECISION,
	longitude DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS hotel_locations_hotel_idx ON hotel_locations (hotel_id);

CREATE TABLE IF NOT EXISTS hotel_contacts (
	id       BIGSERIAL PRIMARY KEY,
	hotel_id BIGINT NOT NULL REFERENCES hotels (id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	value    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS hotel_contacts_hotel_idx ON hotel_contacts (hotel_id);

CREATE TABLE IF NOT EXISTS hotel_mappings (
	id                BIGSERIAL PRIMARY KEY,
	source_id         TEXT NOT NULL REFERENCES data_sources (id),
	provider_hotel_id TEXT NOT NULL,
	hotel_id          BIGINT NOT NULL REFERENCES hotels (id) ON DELETE CASCADE,
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS hotel_mappings_source_idx ON hotel_mappings (source_id, id);
`
