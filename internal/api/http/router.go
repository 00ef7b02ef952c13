package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/resolver"
	"github.com/vadimbarashkov/shortlink-core/internal/service"
)

// LinkService defines the admin-facing link operations the handlers need.
type LinkService interface {
	CreateLink(ctx context.Context, params service.CreateLinkParams) (*models.Link, error)
	GetLink(ctx context.Context, id int64) (*models.Link, error)
	ListLinks(ctx context.Context) ([]*models.Link, error)
	UpdateLink(ctx context.Context, id int64, params service.UpdateLinkParams) (*models.Link, error)
	DeleteLink(ctx context.Context, id int64) error
	GetLinkStats(ctx context.Context, id int64) (*models.Link, error)
	CleanupVisits(ctx context.Context, retentionDays int) (int64, error)
}

// GroupService defines the admin-facing group operations the handlers need.
type GroupService interface {
	CreateGroup(ctx context.Context, name, description string) (*models.Group, error)
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	UpdateGroup(ctx context.Context, id int64, name, description string) (*models.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	ListGroups(ctx context.Context) ([]*models.Group, error)
}

// getValidate initializes the validator used for admin request payloads,
// reporting field names from their JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter wires the admin API and the redirect front door. Requests that
// are not short links fall through to next (the host application's routing).
func NewRouter(logger *httplog.Logger, linkSvc LinkService, groupSvc GroupService, res *resolver.Resolver, next http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))
		r.Use(middleware.AllowContentType("application/json"))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", handleCreateLink(linkSvc, validate))
			r.Get("/", handleListLinks(linkSvc))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleGetLink(linkSvc))
				r.Put("/", handleUpdateLink(linkSvc, validate))
				r.Delete("/", handleDeleteLink(linkSvc))
				r.Get("/stats", handleGetLinkStats(linkSvc))
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", handleCreateGroup(groupSvc, validate))
			r.Get("/", handleListGroups(groupSvc))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleGetGroup(groupSvc))
				r.Put("/", handleUpdateGroup(groupSvc, validate))
				r.Delete("/", handleDeleteGroup(groupSvc))
			})
		})

		r.Post("/maintenance/cleanup-visits", handleCleanupVisits(linkSvc, validate))
	})

	redirect := NewRedirectHandler(res, next)
	r.Handle("/*", redirect)

	return r
}
