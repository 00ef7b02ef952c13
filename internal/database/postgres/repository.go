package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink-core/internal/database"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

type linkRecord struct {
	ID                 int64         `db:"id"`
	Slug               string        `db:"slug"`
	Destination        string        `db:"destination"`
	Title              string        `db:"title"`
	Description        string        `db:"description"`
	CreatedBy          string        `db:"created_by"`
	ExpiresAt          *time.Time    `db:"expires_at"`
	PasswordHash       string        `db:"password_hash"`
	RedirectKind       string        `db:"redirect_kind"`
	Nofollow           bool          `db:"nofollow"`
	Sponsored          bool          `db:"sponsored"`
	ForwardQueryParams bool          `db:"forward_query_params"`
	TrackVisits        bool          `db:"track_visits"`
	IsActive           bool          `db:"is_active"`
	VisitCount         int64         `db:"visit_count"`
	GroupID            sql.NullInt64 `db:"group_id"`
	CreatedAt          time.Time     `db:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	link := &models.Link{
		ID:                 r.ID,
		Slug:               r.Slug,
		Destination:        r.Destination,
		Title:              r.Title,
		Description:        r.Description,
		CreatedBy:          r.CreatedBy,
		ExpiresAt:          r.ExpiresAt,
		PasswordHash:       r.PasswordHash,
		RedirectKind:       models.ParseRedirectKind(r.RedirectKind),
		Nofollow:           r.Nofollow,
		Sponsored:          r.Sponsored,
		ForwardQueryParams: r.ForwardQueryParams,
		TrackVisits:        r.TrackVisits,
		IsActive:           r.IsActive,
		VisitCount:         r.VisitCount,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}

	if r.GroupID.Valid {
		groupID := r.GroupID.Int64
		link.GroupID = &groupID
	}

	return link
}

type redirectRecord struct {
	ID                 int64      `db:"id"`
	Slug               string     `db:"slug"`
	Destination        string     `db:"destination"`
	RedirectKind       string     `db:"redirect_kind"`
	PasswordHash       string     `db:"password_hash"`
	Nofollow           bool       `db:"nofollow"`
	Sponsored          bool       `db:"sponsored"`
	ForwardQueryParams bool       `db:"forward_query_params"`
	TrackVisits        bool       `db:"track_visits"`
	IsActive           bool       `db:"is_active"`
	ExpiresAt          *time.Time `db:"expires_at"`
}

func (r *redirectRecord) ToRedirectRecord() *models.RedirectRecord {
	return &models.RedirectRecord{
		ID:                 r.ID,
		Slug:               r.Slug,
		Destination:        r.Destination,
		RedirectKind:       models.ParseRedirectKind(r.RedirectKind),
		PasswordHash:       r.PasswordHash,
		Nofollow:           r.Nofollow,
		Sponsored:          r.Sponsored,
		ForwardQueryParams: r.ForwardQueryParams,
		TrackVisits:        r.TrackVisits,
		IsActive:           r.IsActive,
		ExpiresAt:          r.ExpiresAt,
	}
}

type groupRecord struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	LinksCount  int64     `db:"links_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *groupRecord) ToGroup() *models.Group {
	return &models.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		LinksCount:  r.LinksCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Repository persists links, groups and visits in PostgreSQL.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// slugPredicate returns the WHERE fragment used for slug lookups. The
// case-insensitive form compares lowered values at query time.
func slugPredicate(caseSensitive bool) string {
	if caseSensitive {
		return "slug = $1"
	}
	return "lower(slug) = lower($1)"
}

func nullableGroupID(groupID *int64) sql.NullInt64 {
	if groupID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *groupID, Valid: true}
}

func (r *Repository) CreateLink(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.Repository.CreateLink"

	rec := new(linkRecord)
	query := `INSERT INTO links(slug, destination, title, description, created_by, expires_at,
			password_hash, redirect_kind, nofollow, sponsored, forward_query_params,
			track_visits, is_active, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		link.Slug, link.Destination, link.Title, link.Description, link.CreatedBy,
		link.ExpiresAt, link.PasswordHash, string(link.RedirectKind), link.Nofollow,
		link.Sponsored, link.ForwardQueryParams, link.TrackVisits, link.IsActive,
		nullableGroupID(link.GroupID))
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *Repository) GetLinkByID(ctx context.Context, id int64) (*models.Link, error) {
	const op = "database.postgres.Repository.GetLinkByID"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *Repository) GetBySlug(ctx context.Context, slug string, caseSensitive bool) (*models.Link, error) {
	const op = "database.postgres.Repository.GetBySlug"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE ` + slugPredicate(caseSensitive)

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// GetForRedirect loads the narrow projection used on the redirect hot path.
func (r *Repository) GetForRedirect(ctx context.Context, slug string, caseSensitive bool) (*models.RedirectRecord, error) {
	const op = "database.postgres.Repository.GetForRedirect"

	rec := new(redirectRecord)
	query := `SELECT id, slug, destination, redirect_kind, password_hash, nofollow, sponsored,
			forward_query_params, track_visits, is_active, expires_at
		FROM links WHERE ` + slugPredicate(caseSensitive)

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get redirect record: %w", op, err)
	}

	return rec.ToRedirectRecord(), nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string, caseSensitive bool) (bool, error) {
	const op = "database.postgres.Repository.SlugExists"

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM links WHERE ` + slugPredicate(caseSensitive) + `)`

	if err := r.db.GetContext(ctx, &exists, query, slug); err != nil {
		return false, fmt.Errorf("%s: failed to check slug: %w", op, err)
	}

	return exists, nil
}

func (r *Repository) UpdateLink(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.Repository.UpdateLink"

	rec := new(linkRecord)
	query := `UPDATE links
		SET slug = $1, destination = $2, title = $3, description = $4, expires_at = $5,
			password_hash = $6, redirect_kind = $7, nofollow = $8, sponsored = $9,
			forward_query_params = $10, track_visits = $11, is_active = $12,
			group_id = $13, updated_at = now()
		WHERE id = $14
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		link.Slug, link.Destination, link.Title, link.Description, link.ExpiresAt,
		link.PasswordHash, string(link.RedirectKind), link.Nofollow, link.Sponsored,
		link.ForwardQueryParams, link.TrackVisits, link.IsActive,
		nullableGroupID(link.GroupID), link.ID)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *Repository) DeleteLink(ctx context.Context, id int64) error {
	const op = "database.postgres.Repository.DeleteLink"

	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

func (r *Repository) ListLinks(ctx context.Context) ([]*models.Link, error) {
	const op = "database.postgres.Repository.ListLinks"

	var recs []linkRecord
	query := `SELECT * FROM links ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	links := make([]*models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].ToLink())
	}

	return links, nil
}

// IncrementVisits bumps the visit counter as a single atomic UPDATE so
// concurrent redirects to the same slug never lose updates.
func (r *Repository) IncrementVisits(ctx context.Context, id int64) error {
	const op = "database.postgres.Repository.IncrementVisits"

	res, err := r.db.ExecContext(ctx,
		`UPDATE links SET visit_count = visit_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: failed to increment visits: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// RecordVisit inserts the visit row and increments the link's visit counter
// in one transaction, so a reader never observes one without the other.
func (r *Repository) RecordVisit(ctx context.Context, visit *models.Visit) (int64, error) {
	const op = "database.postgres.Repository.RecordVisit"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var id int64
	query := `INSERT INTO visits(link_id, visitor_ip, user_agent, referrer, visited_at,
			browser, browser_version, os, os_version, device_type,
			country_code, country_name, region, city, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	err = tx.GetContext(ctx, &id, query,
		visit.LinkID, visit.VisitorIP, visit.UserAgent, visit.Referrer, visit.VisitedAt,
		visit.Browser, visit.BrowserVersion, visit.OS, visit.OSVersion, string(visit.DeviceType),
		visit.Geo.CountryCode, visit.Geo.CountryName, visit.Geo.Region, visit.Geo.City,
		visit.Geo.Latitude, visit.Geo.Longitude)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to insert visit record: %w", op, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE links SET visit_count = visit_count + 1 WHERE id = $1`, visit.LinkID)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to increment visits: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return id, nil
}

// CleanupVisits deletes visit rows older than the retention window. A
// non-positive retention keeps everything.
func (r *Repository) CleanupVisits(ctx context.Context, retentionDays int) (int64, error) {
	const op = "database.postgres.Repository.CleanupVisits"

	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	res, err := r.db.ExecContext(ctx, `DELETE FROM visits WHERE visited_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete visit records: %w", op, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}

	return deleted, nil
}

func (r *Repository) CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	const op = "database.postgres.Repository.CreateGroup"

	rec := new(groupRecord)
	query := `INSERT INTO groups(name, description)
		VALUES ($1, $2)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, group.Name, group.Description)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create group record: %w", op, err)
	}

	return rec.ToGroup(), nil
}

func (r *Repository) GetGroupByID(ctx context.Context, id int64) (*models.Group, error) {
	const op = "database.postgres.Repository.GetGroupByID"

	rec := new(groupRecord)
	query := `SELECT * FROM groups WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrGroupNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get group record: %w", op, err)
	}

	return rec.ToGroup(), nil
}

func (r *Repository) UpdateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	const op = "database.postgres.Repository.UpdateGroup"

	rec := new(groupRecord)
	query := `UPDATE groups
		SET name = $1, description = $2, updated_at = now()
		WHERE id = $3
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, group.Name, group.Description, group.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrGroupNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update group record: %w", op, err)
	}

	return rec.ToGroup(), nil
}

// DeleteGroup detaches member links before removing the group row, so links
// survive their group.
func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	const op = "database.postgres.Repository.DeleteGroup"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE links SET group_id = NULL WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: failed to detach links: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete group record: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrGroupNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *Repository) ListGroups(ctx context.Context) ([]*models.Group, error) {
	const op = "database.postgres.Repository.ListGroups"

	var recs []groupRecord
	query := `SELECT * FROM groups ORDER BY name`

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to list group records: %w", op, err)
	}

	groups := make([]*models.Group, 0, len(recs))
	for i := range recs {
		groups = append(groups, recs[i].ToGroup())
	}

	return groups, nil
}

// UpdateGroupLinksCount recomputes the denormalized member count by counting.
func (r *Repository) UpdateGroupLinksCount(ctx context.Context, groupID int64) error {
	const op = "database.postgres.Repository.UpdateGroupLinksCount"

	query := `UPDATE groups
		SET links_count = (SELECT count(*) FROM links WHERE group_id = $1)
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, groupID); err != nil {
		return fmt.Errorf("%s: failed to update group links count: %w", op, err)
	}

	return nil
}
