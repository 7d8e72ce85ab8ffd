package storage

import (
	"context"
	"fmt"
	"strings"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS news_articles (
	id           {{id}},
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	source       TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	published_at {{ts}} NOT NULL,
	fetched_at   {{ts}} NOT NULL,
	created_at   {{ts}} NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS news_articles_url_key ON news_articles (url);
CREATE INDEX IF NOT EXISTS news_articles_published_idx ON news_articles (published_at);
CREATE INDEX IF NOT EXISTS news_articles_category_idx ON news_articles (category);
CREATE INDEX IF NOT EXISTS news_articles_source_idx ON news_articles (source);

CREATE TABLE IF NOT EXISTS policy_documents (
	id           {{id}},
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	source       TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	published_at {{ts}} NOT NULL,
	fetched_at   {{ts}} NOT NULL,
	created_at   {{ts}} NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS policy_documents_url_key ON policy_documents (url);
CREATE INDEX IF NOT EXISTS policy_documents_published_idx ON policy_documents (published_at);
CREATE INDEX IF NOT EXISTS policy_documents_category_idx ON policy_documents (category);
CREATE INDEX IF NOT EXISTS policy_documents_source_idx ON policy_documents (source);

CREATE TABLE IF NOT EXISTS job_listings (
	id              {{id}},
	external_id     TEXT NOT NULL,
	title           TEXT NOT NULL,
	agency          TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	remote          BOOLEAN NOT NULL DEFAULT FALSE,
	salary_min      BIGINT,
	salary_max      BIGINT,
	clearance_level TEXT,
	summary         TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL,
	source          TEXT NOT NULL,
	posted_at       {{ts}} NOT NULL,
	closing_at      {{ts}},
	fetched_at      {{ts}} NOT NULL,
	created_at      {{ts}} NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS job_listings_external_id_key ON job_listings (external_id);
CREATE INDEX IF NOT EXISTS job_listings_posted_idx ON job_listings (posted_at);
CREATE INDEX IF NOT EXISTS job_listings_agency_idx ON job_listings (agency);
CREATE INDEX IF NOT EXISTS job_listings_closing_idx ON job_listings (closing_at);

CREATE TABLE IF NOT EXISTS feed_updates (
	id              {{id}},
	feed_type       TEXT NOT NULL,
	source          TEXT NOT NULL,
	last_fetched_at {{ts}} NOT NULL,
	items_count     INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error_message   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS feed_updates_type_fetched_idx ON feed_updates (feed_type, last_fetched_at);
`

func schemaFor(driver string) string {
	id, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	if driver == DriverPostgres {
		id, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	return strings.NewReplacer("{{id}}", id, "{{ts}}", ts).Replace(schemaTemplate)
}

// Migrate creates the content and run-log tables when missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaFor(r.driver)); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
