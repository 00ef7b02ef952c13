// Package service implements the admin-facing link and group operations that
// surround the redirect core: CRUD with slug validation, password hashing,
// and group membership accounting.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vadimbarashkov/shortlink-core/internal/database"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/slug"
)

var (
	// ErrInvalidSlug is returned when a manually entered slug uses a
	// forbidden character or shadows a reserved path.
	ErrInvalidSlug = errors.New("invalid slug")
	// ErrInvalidGroupName is returned when a group name is empty.
	ErrInvalidGroupName = errors.New("invalid group name")
)

// LinkRepository defines the persistence operations the link service needs.
type LinkRepository interface {
	CreateLink(ctx context.Context, link *models.Link) (*models.Link, error)
	GetLinkByID(ctx context.Context, id int64) (*models.Link, error)
	GetBySlug(ctx context.Context, slug string, caseSensitive bool) (*models.Link, error)
	UpdateLink(ctx context.Context, link *models.Link) (*models.Link, error)
	DeleteLink(ctx context.Context, id int64) error
	ListLinks(ctx context.Context) ([]*models.Link, error)
	SlugExists(ctx context.Context, slug string, caseSensitive bool) (bool, error)
	UpdateGroupLinksCount(ctx context.Context, groupID int64) error
	CleanupVisits(ctx context.Context, retentionDays int) (int64, error)
}

// SlugGenerator produces unique slugs when none is supplied manually.
type SlugGenerator interface {
	Generate(ctx context.Context, length int) (string, error)
}

// CreateLinkParams carries the fields accepted when creating a link. An
// empty Slug requests generation; a non-empty Password is hashed before
// storage.
type CreateLinkParams struct {
	Slug               string
	Destination        string
	Title              string
	Description        string
	CreatedBy          string
	ExpiresAt          *time.Time
	Password           string
	RedirectKind       string
	Nofollow           bool
	Sponsored          bool
	ForwardQueryParams bool
	TrackVisits        bool
	IsActive           bool
	GroupID            *int64
}

// UpdateLinkParams mirrors CreateLinkParams for full updates. Password
// semantics: nil keeps the current hash, empty string clears it, anything
// else replaces it.
type UpdateLinkParams struct {
	Slug               string
	Destination        string
	Title              string
	Description        string
	ExpiresAt          *time.Time
	Password           *string
	RedirectKind       string
	Nofollow           bool
	Sponsored          bool
	ForwardQueryParams bool
	TrackVisits        bool
	IsActive           bool
	GroupID            *int64
}

// LinkService manages short links on behalf of the admin surface.
type LinkService struct {
	repo          LinkRepository
	gen           SlugGenerator
	slugLength    int
	caseSensitive bool
	defaultKind   models.RedirectKind
}

func NewLinkService(repo LinkRepository, gen SlugGenerator, slugLength int, caseSensitive bool, defaultKind models.RedirectKind) *LinkService {
	return &LinkService{
		repo:          repo,
		gen:           gen,
		slugLength:    slugLength,
		caseSensitive: caseSensitive,
		defaultKind:   defaultKind,
	}
}

func (s *LinkService) CreateLink(ctx context.Context, params CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"

	linkSlug := params.Slug
	if linkSlug != "" {
		if !slug.IsValid(linkSlug) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSlug)
		}
		if err := s.checkSlugFree(ctx, linkSlug); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		generated, err := s.gen.Generate(ctx, s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate slug: %w", op, err)
		}
		linkSlug = generated
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	kind := s.defaultKind
	if params.RedirectKind != "" {
		kind = models.ParseRedirectKind(params.RedirectKind)
	}

	link, err := s.repo.CreateLink(ctx, &models.Link{
		Slug:               linkSlug,
		Destination:        params.Destination,
		Title:              params.Title,
		Description:        params.Description,
		CreatedBy:          params.CreatedBy,
		ExpiresAt:          params.ExpiresAt,
		PasswordHash:       passwordHash,
		RedirectKind:       kind,
		Nofollow:           params.Nofollow,
		Sponsored:          params.Sponsored,
		ForwardQueryParams: params.ForwardQueryParams,
		TrackVisits:        params.TrackVisits,
		IsActive:           params.IsActive,
		GroupID:            params.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
	}

	s.recountGroups(ctx, link.GroupID)

	return link, nil
}

func (s *LinkService) GetLink(ctx context.Context, id int64) (*models.Link, error) {
	const op = "service.LinkService.GetLink"

	link, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return link, nil
}

func (s *LinkService) GetLinkBySlug(ctx context.Context, linkSlug string) (*models.Link, error) {
	const op = "service.LinkService.GetLinkBySlug"

	link, err := s.repo.GetBySlug(ctx, linkSlug, s.caseSensitive)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return link, nil
}

func (s *LinkService) ListLinks(ctx context.Context) ([]*models.Link, error) {
	const op = "service.LinkService.ListLinks"

	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, id int64, params UpdateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.UpdateLink"

	current, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	linkSlug := params.Slug
	if linkSlug == "" {
		linkSlug = current.Slug
	} else {
		if !slug.IsValid(linkSlug) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSlug)
		}
		if !sameSlug(linkSlug, current.Slug, s.caseSensitive) {
			if err := s.checkSlugFree(ctx, linkSlug); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	passwordHash := current.PasswordHash
	if params.Password != nil {
		passwordHash, err = hashPassword(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
	}

	kind := current.RedirectKind
	if params.RedirectKind != "" {
		kind = models.ParseRedirectKind(params.RedirectKind)
	}

	updated, err := s.repo.UpdateLink(ctx, &models.Link{
		ID:                 id,
		Slug:               linkSlug,
		Destination:        params.Destination,
		Title:              params.Title,
		Description:        params.Description,
		ExpiresAt:          params.ExpiresAt,
		PasswordHash:       passwordHash,
		RedirectKind:       kind,
		Nofollow:           params.Nofollow,
		Sponsored:          params.Sponsored,
		ForwardQueryParams: params.ForwardQueryParams,
		TrackVisits:        params.TrackVisits,
		IsActive:           params.IsActive,
		GroupID:            params.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update link: %w", op, err)
	}

	// Membership may have changed in either direction.
	if !sameGroup(current.GroupID, updated.GroupID) {
		s.recountGroups(ctx, current.GroupID, updated.GroupID)
	}

	return updated, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, id int64) error {
	const op = "service.LinkService.DeleteLink"

	current, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if err := s.repo.DeleteLink(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	s.recountGroups(ctx, current.GroupID)

	return nil
}

// GetLinkStats returns the link with its visit counter; the counter is
// maintained atomically by the store, so this is a plain read.
func (s *LinkService) GetLinkStats(ctx context.Context, id int64) (*models.Link, error) {
	const op = "service.LinkService.GetLinkStats"

	link, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	return link, nil
}

func (s *LinkService) CleanupVisits(ctx context.Context, retentionDays int) (int64, error) {
	const op = "service.LinkService.CleanupVisits"

	deleted, err := s.repo.CleanupVisits(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to clean up visits: %w", op, err)
	}

	return deleted, nil
}

// recountGroups refreshes the denormalized counters for the given groups.
// Failures are not fatal to the triggering operation; the count converges on
// the next membership change.
func (s *LinkService) recountGroups(ctx context.Context, groupIDs ...*int64) {
	seen := make(map[int64]struct{}, len(groupIDs))

	for _, groupID := range groupIDs {
		if groupID == nil {
			continue
		}
		if _, ok := seen[*groupID]; ok {
			continue
		}
		seen[*groupID] = struct{}{}

		_ = s.repo.UpdateGroupLinksCount(ctx, *groupID)
	}
}

// checkSlugFree rejects a manually entered slug that is already taken under
// the configured case rule. The unique index guards exact matches only, so
// case-insensitive deployments need this check before the insert.
func (s *LinkService) checkSlugFree(ctx context.Context, linkSlug string) error {
	exists, err := s.repo.SlugExists(ctx, linkSlug, s.caseSensitive)
	if err != nil {
		return fmt.Errorf("failed to check slug availability: %w", err)
	}
	if exists {
		return database.ErrSlugExists
	}
	return nil
}

func sameSlug(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func sameGroup(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// GroupRepository defines the persistence operations the group service needs.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	GetGroupByID(ctx context.Context, id int64) (*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	ListGroups(ctx context.Context) ([]*models.Group, error)
}

// GroupService manages link groups.
type GroupService struct {
	repo GroupRepository
}

func NewGroupService(repo GroupRepository) *GroupService {
	return &GroupService{
		repo: repo,
	}
}

func (s *GroupService) CreateGroup(ctx context.Context, name, description string) (*models.Group, error) {
	const op = "service.GroupService.CreateGroup"

	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGroupName)
	}

	group, err := s.repo.CreateGroup(ctx, &models.Group{Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create group: %w", op, err)
	}

	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	const op = "service.GroupService.GetGroup"

	group, err := s.repo.GetGroupByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get group: %w", op, err)
	}

	return group, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, id int64, name, description string) (*models.Group, error) {
	const op = "service.GroupService.UpdateGroup"

	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGroupName)
	}

	group, err := s.repo.UpdateGroup(ctx, &models.Group{ID: id, Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update group: %w", op, err)
	}

	return group, nil
}

// DeleteGroup removes the group; member links are detached by the store,
// never deleted.
func (s *GroupService) DeleteGroup(ctx context.Context, id int64) error {
	const op = "service.GroupService.DeleteGroup"

	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete group: %w", op, err)
	}

	return nil
}

func (s *GroupService) ListGroups(ctx context.Context) ([]*models.Group, error) {
	const op = "service.GroupService.ListGroups"

	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list groups: %w", op, err)
	}

	return groups, nil
}
