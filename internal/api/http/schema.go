package http

import (
	"time"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

type linkRequest struct {
	Slug               string     `json:"slug" validate:"omitempty,max=64"`
	Destination        string     `json:"destination" validate:"required,url"`
	Title              string     `json:"title" validate:"max=255"`
	Description        string     `json:"description"`
	CreatedBy          string     `json:"created_by" validate:"max=255"`
	ExpiresAt          *time.Time `json:"expires_at"`
	Password           string     `json:"password"`
	RedirectKind       string     `json:"redirect_kind" validate:"omitempty,oneof=permanent temporary temporary_strict"`
	Nofollow           bool       `json:"nofollow"`
	Sponsored          bool       `json:"sponsored"`
	ForwardQueryParams bool       `json:"forward_query_params"`
	TrackVisits        bool       `json:"track_visits"`
	IsActive           bool       `json:"is_active"`
	GroupID            *int64     `json:"group_id"`
}

type updateLinkRequest struct {
	Slug               string     `json:"slug" validate:"omitempty,max=64"`
	Destination        string     `json:"destination" validate:"required,url"`
	Title              string     `json:"title" validate:"max=255"`
	Description        string     `json:"description"`
	ExpiresAt          *time.Time `json:"expires_at"`
	Password           *string    `json:"password"`
	RedirectKind       string     `json:"redirect_kind" validate:"omitempty,oneof=permanent temporary temporary_strict"`
	Nofollow           bool       `json:"nofollow"`
	Sponsored          bool       `json:"sponsored"`
	ForwardQueryParams bool       `json:"forward_query_params"`
	TrackVisits        bool       `json:"track_visits"`
	IsActive           bool       `json:"is_active"`
	GroupID            *int64     `json:"group_id"`
}

type linkResponse struct {
	ID                 int64      `json:"id"`
	Slug               string     `json:"slug"`
	Destination        string     `json:"destination"`
	Title              string     `json:"title,omitempty"`
	Description        string     `json:"description,omitempty"`
	CreatedBy          string     `json:"created_by,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	HasPassword        bool       `json:"has_password"`
	RedirectKind       string     `json:"redirect_kind"`
	Nofollow           bool       `json:"nofollow"`
	Sponsored          bool       `json:"sponsored"`
	ForwardQueryParams bool       `json:"forward_query_params"`
	TrackVisits        bool       `json:"track_visits"`
	IsActive           bool       `json:"is_active"`
	GroupID            *int64     `json:"group_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toLinkResponse(link *models.Link) linkResponse {
	return linkResponse{
		ID:                 link.ID,
		Slug:               link.Slug,
		Destination:        link.Destination,
		Title:              link.Title,
		Description:        link.Description,
		CreatedBy:          link.CreatedBy,
		ExpiresAt:          link.ExpiresAt,
		HasPassword:        link.PasswordHash != "",
		RedirectKind:       string(link.RedirectKind),
		Nofollow:           link.Nofollow,
		Sponsored:          link.Sponsored,
		ForwardQueryParams: link.ForwardQueryParams,
		TrackVisits:        link.TrackVisits,
		IsActive:           link.IsActive,
		GroupID:            link.GroupID,
		CreatedAt:          link.CreatedAt,
		UpdatedAt:          link.UpdatedAt,
	}
}

func toLinkResponses(links []*models.Link) []linkResponse {
	resp := make([]linkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, toLinkResponse(link))
	}
	return resp
}

type linkStatsResponse struct {
	ID         int64  `json:"id"`
	Slug       string `json:"slug"`
	VisitCount int64  `json:"visit_count"`
}

func toLinkStatsResponse(link *models.Link) linkStatsResponse {
	return linkStatsResponse{
		ID:         link.ID,
		Slug:       link.Slug,
		VisitCount: link.VisitCount,
	}
}

type groupRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type groupResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LinksCount  int64     `json:"links_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toGroupResponse(group *models.Group) groupResponse {
	return groupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		LinksCount:  group.LinksCount,
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}
}

func toGroupResponses(groups []*models.Group) []groupResponse {
	resp := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		resp = append(resp, toGroupResponse(group))
	}
	return resp
}

type cleanupRequest struct {
	RetentionDays int `json:"retention_days" validate:"min=0"`
}

type cleanupResponse struct {
	Deleted int64 `json:"deleted"`
}
