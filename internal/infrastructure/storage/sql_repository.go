package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cdoportal/internal/domain"
	"cdoportal/internal/ports"
)

type table struct {
	name       string
	keyColumn  string
	dateColumn string
	groupBy    string
}

var tables = map[domain.Kind]table{
	domain.KindNews:   {name: "news_articles", keyColumn: "url", dateColumn: "published_at", groupBy: "category"},
	domain.KindPolicy: {name: "policy_documents", keyColumn: "url", dateColumn: "published_at", groupBy: "category"},
	domain.KindJobs:   {name: "job_listings", keyColumn: "external_id", dateColumn: "posted_at", groupBy: "agency"},
}

var (
	articleColumns = []string{"id", "title", "summary", "url", "source", "category", "published_at", "fetched_at", "created_at"}
	jobColumns     = []string{
		"id", "external_id", "title", "agency", "location", "remote", "salary_min", "salary_max",
		"clearance_level", "summary", "url", "source", "posted_at", "closing_at", "fetched_at", "created_at",
	}
)

// SQLRepository persists content items and run logs into SQLite or Postgres.
type SQLRepository struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

var (
	_ ports.ItemStore     = (*SQLRepository)(nil)
	_ ports.RunLog        = (*SQLRepository)(nil)
	_ ports.CatalogReader = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB opened with the given driver.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}
	return &SQLRepository{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:    time.Now,
	}
}

// Upsert stores the item when its natural key is new. Existing rows are never
// modified; the stored row is returned either way.
func (r *SQLRepository) Upsert(ctx context.Context, item domain.Item) (domain.Item, bool, error) {
	t, ok := tables[item.Kind]
	if !ok {
		return domain.Item{}, false, fmt.Errorf("upsert: %w: %q", domain.ErrUnknownKind, item.Kind)
	}
	if item.NaturalKey == "" && item.Kind != domain.KindJobs {
		item.NaturalKey = item.URL
	}
	if strings.TrimSpace(item.NaturalKey) == "" || strings.TrimSpace(item.Title) == "" {
		return domain.Item{}, false, fmt.Errorf("upsert %s: %w: natural key and title are required", item.Kind, domain.ErrInvalidInput)
	}

	existing, err := r.findByKey(ctx, item.Kind, item.NaturalKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, false, err
	}

	insert := r.insertFor(t, item)
	query, args, err := insert.ToSql()
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("build insert: %w", err)
	}

	created := true
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if !isUniqueViolation(err) {
			return domain.Item{}, false, fmt.Errorf("insert %s: %w", t.name, err)
		}
		// Lost a race with another writer; the row exists now.
		created = false
	}

	stored, err := r.findByKey(ctx, item.Kind, item.NaturalKey)
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("re-read %s: %w", t.name, err)
	}
	return stored, created, nil
}

func (r *SQLRepository) insertFor(t table, item domain.Item) sq.InsertBuilder {
	now := dbTime(r.now())
	fetched := item.FetchedAt
	if fetched.IsZero() {
		fetched = now
	}
	published := item.PublishedAt
	if published.IsZero() {
		published = fetched
	}

	if item.Kind == domain.KindJobs {
		return r.sb.Insert(t.name).
			Columns(jobColumns[1:]...).
			Values(
				item.NaturalKey, item.Title, item.Agency, item.Location, item.Remote,
				nullInt(item.SalaryMin), nullInt(item.SalaryMax), nullString(item.ClearanceLevel),
				item.Summary, item.URL, item.Source,
				dbTime(published), nullTime(item.ClosingAt), dbTime(fetched), now,
			)
	}

	return r.sb.Insert(t.name).
		Columns(articleColumns[1:]...).
		Values(item.Title, item.Summary, item.NaturalKey, item.Source, item.Category, dbTime(published), dbTime(fetched), now)
}

func (r *SQLRepository) findByKey(ctx context.Context, kind domain.Kind, key string) (domain.Item, error) {
	t := tables[kind]
	query, args, err := r.sb.Select(columnsFor(kind)...).
		From(t.name).
		Where(sq.Eq{t.keyColumn: key}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build select: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, err
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("select %s by key: %w", t.name, err)
	}
	return item, nil
}

// RecordRun appends one run-log entry.
func (r *SQLRepository) RecordRun(ctx context.Context, run domain.FeedRun) error {
	fetched := run.LastFetchedAt
	if fetched.IsZero() {
		fetched = r.now()
	}

	query, args, err := r.sb.Insert("feed_updates").
		Columns("feed_type", "source", "last_fetched_at", "items_count", "status", "error_message").
		Values(string(run.Kind), run.Source, dbTime(fetched), run.ItemsCount, string(run.Status), run.ErrorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert feed run: %w", err)
	}
	return nil
}

// List returns items matching every set predicate, newest first.
func (r *SQLRepository) List(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Item, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("list: %w: %q", domain.ErrUnknownKind, kind)
	}

	qb := r.sb.Select(columnsFor(kind)...).From(t.name)

	if filter.Category != "" {
		qb = qb.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Source != "" {
		qb = qb.Where(sq.Eq{"source": filter.Source})
	}
	if kind == domain.KindJobs {
		if filter.Agency != "" {
			qb = qb.Where(r.contains("agency", filter.Agency))
		}
		if filter.Keyword != "" {
			qb = qb.Where(r.contains("title", filter.Keyword))
		}
		if filter.ClearanceLevel != "" {
			qb = qb.Where(sq.Eq{"clearance_level": filter.ClearanceLevel})
		}
		if filter.Remote != nil {
			qb = qb.Where(sq.Eq{"remote": *filter.Remote})
		}
		qb = qb.Where(sq.GtOrEq{"closing_at": dbTime(r.now())})
	}

	qb = qb.OrderBy(t.dateColumn+" DESC", "id DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

// Stats aggregates counts per category (or agency) and source, plus the last run time.
func (r *SQLRepository) Stats(ctx context.Context, kind domain.Kind) (domain.Stats, error) {
	t, ok := tables[kind]
	if !ok {
		return domain.Stats{}, fmt.Errorf("stats: %w: %q", domain.ErrUnknownKind, kind)
	}

	groups, err := r.countBy(ctx, t.name, t.groupBy)
	if err != nil {
		return domain.Stats{}, err
	}
	sources, err := r.countBy(ctx, t.name, "source")
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{Kind: kind, BySource: sources}
	for _, n := range groups {
		stats.Total += n
	}
	if kind == domain.KindJobs {
		stats.ByAgency = groups
	} else {
		stats.ByCategory = groups
	}

	last, err := r.lastRun(ctx, kind)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.LastUpdate = last

	if kind == domain.KindJobs {
		active, err := r.activeJobs(ctx)
		if err != nil {
			return domain.Stats{}, err
		}
		stats.ActiveJobs = &active
	}

	return stats, nil
}

func (r *SQLRepository) countBy(ctx context.Context, tableName, column string) (map[string]int, error) {
	query, args, err := r.sb.Select(column, "COUNT(*)").From(tableName).GroupBy(column).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", tableName, column, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			key sql.NullString
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key.String] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

func (r *SQLRepository) lastRun(ctx context.Context, kind domain.Kind) (*time.Time, error) {
	query, args, err := r.sb.Select("last_fetched_at").
		From("feed_updates").
		Where(sq.Eq{"feed_type": string(kind)}).
		OrderBy("last_fetched_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last run: %w", err)
	}

	var last time.Time
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select last run: %w", err)
	}
	last = last.UTC()
	return &last, nil
}

func (r *SQLRepository) activeJobs(ctx context.Context) (int, error) {
	query, args, err := r.sb.Select("COUNT(*)").
		From(tables[domain.KindJobs].name).
		Where(sq.GtOrEq{"closing_at": dbTime(r.now())}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build active jobs: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

// contains is a case-insensitive substring predicate. SQLite LIKE already
// ignores ASCII case.
func (r *SQLRepository) contains(column, value string) sq.Sqlizer {
	pattern := "%" + value + "%"
	if r.driver == DriverPostgres {
		return sq.ILike{column: pattern}
	}
	return sq.Like{column: pattern}
}

func columnsFor(kind domain.Kind) []string {
	if kind == domain.KindJobs {
		return jobColumns
	}
	return articleColumns
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(kind domain.Kind, row rowScanner) (domain.Item, error) {
	if kind == domain.KindJobs {
		return scanJob(row)
	}

	item := domain.Item{Kind: kind}
	err := row.Scan(&item.ID, &item.Title, &item.Summary, &item.URL, &item.Source, &item.Category,
		&item.PublishedAt, &item.FetchedAt, &item.CreatedAt)
	if err != nil {
		return domain.Item{}, err
	}
	item.NaturalKey = item.URL
	normalizeTimes(&item)
	return item, nil
}

func scanJob(row rowScanner) (domain.Item, error) {
	var (
		item      = domain.Item{Kind: domain.KindJobs}
		salaryMin sql.NullInt64
		salaryMax sql.NullInt64
		clearance sql.NullString
		closing   sql.NullTime
	)
	err := row.Scan(&item.ID, &item.NaturalKey, &item.Title, &item.Agency, &item.Location, &item.Remote,
		&salaryMin, &salaryMax, &clearance, &item.Summary, &item.URL, &item.Source,
		&item.PublishedAt, &closing, &item.FetchedAt, &item.CreatedAt)
	if err != nil {
		return domain.Item{}, err
	}

	if salaryMin.Valid {
		item.SalaryMin = &salaryMin.Int64
	}
	if salaryMax.Valid {
		item.SalaryMax = &salaryMax.Int64
	}
	if clearance.Valid {
		item.ClearanceLevel = &clearance.String
	}
	if closing.Valid {
		t := closing.Time.UTC()
		item.ClosingAt = &t
	}
	normalizeTimes(&item)
	return item, nil
}

func normalizeTimes(item *domain.Item) {
	item.PublishedAt = item.PublishedAt.UTC()
	item.FetchedAt = item.FetchedAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
}

// dbTime keeps every stored timestamp in one layout so text comparisons in
// SQLite agree with time order.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}
