package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink-core/internal/database"
	"github.com/vadimbarashkov/shortlink-core/internal/service"
	"github.com/vadimbarashkov/shortlink-core/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.EmptyRequestBodyResponse)
			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.BadRequestResponse)
		return false
	}

	return true
}

// renderLinkError maps service errors onto the admin API envelope.
func renderLinkError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, database.ErrLinkNotFound), errors.Is(err, database.ErrGroupNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.ResourceNotFoundResponse)
	case errors.Is(err, database.ErrSlugExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.SlugConflictResponse)
	case errors.Is(err, service.ErrInvalidSlug):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.InvalidSlugResponse)
	case errors.Is(err, service.ErrInvalidGroupName):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.BadRequestResponse)
	default:
		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ServerErrorResponse)
	}
}

func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest

		if !decodeBody(w, r, &req) {
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.CreateLink(r.Context(), service.CreateLinkParams{
			Slug:               req.Slug,
			Destination:        req.Destination,
			Title:              req.Title,
			Description:        req.Description,
			CreatedBy:          req.CreatedBy,
			ExpiresAt:          req.ExpiresAt,
			Password:           req.Password,
			RedirectKind:       req.RedirectKind,
			Nofollow:           req.Nofollow,
			Sponsored:          req.Sponsored,
			ForwardQueryParams: req.ForwardQueryParams,
			TrackVisits:        req.TrackVisits,
			IsActive:           req.IsActive,
			GroupID:            req.GroupID,
		})
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

func handleGetLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleGetLink"
	const successMsg = "The link was retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		link, err := svc.GetLink(r.Context(), id)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

func handleListLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleListLinks"
	const successMsg = "The links were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		links, err := svc.ListLinks(r.Context())
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponses(links)))
	}
}

func handleUpdateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleUpdateLink"
	const successMsg = "The link was updated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		var req updateLinkRequest

		if !decodeBody(w, r, &req) {
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.UpdateLink(r.Context(), id, service.UpdateLinkParams{
			Slug:               req.Slug,
			Destination:        req.Destination,
			Title:              req.Title,
			Description:        req.Description,
			ExpiresAt:          req.ExpiresAt,
			Password:           req.Password,
			RedirectKind:       req.RedirectKind,
			Nofollow:           req.Nofollow,
			Sponsored:          req.Sponsored,
			ForwardQueryParams: req.ForwardQueryParams,
			TrackVisits:        req.TrackVisits,
			IsActive:           req.IsActive,
			GroupID:            req.GroupID,
		})
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

func handleDeleteLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleDeleteLink"
	const successMsg = "The link was deleted successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := svc.DeleteLink(r.Context(), id); err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

func handleGetLinkStats(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleGetLinkStats"
	const successMsg = "The link statistics were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		link, err := svc.GetLinkStats(r.Context(), id)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkStatsResponse(link)))
	}
}

func handleCleanupVisits(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCleanupVisits"
	const successMsg = "The visit cleanup was completed successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req cleanupRequest

		if !decodeBody(w, r, &req) {
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		deleted, err := svc.CleanupVisits(r.Context(), req.RetentionDays)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, cleanupResponse{Deleted: deleted}))
	}
}

func handleCreateGroup(svc GroupService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateGroup"
	const successMsg = "The group has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req groupRequest

		if !decodeBody(w, r, &req) {
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		group, err := svc.CreateGroup(r.Context(), req.Name, req.Description)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toGroupResponse(group)))
	}
}

func handleGetGroup(svc GroupService) http.HandlerFunc {
	const op = "api.http.handleGetGroup"
	const successMsg = "The group was retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		group, err := svc.GetGroup(r.Context(), id)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toGroupResponse(group)))
	}
}

func handleListGroups(svc GroupService) http.HandlerFunc {
	const op = "api.http.handleListGroups"
	const successMsg = "The groups were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := svc.ListGroups(r.Context())
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toGroupResponses(groups)))
	}
}

func handleUpdateGroup(svc GroupService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleUpdateGroup"
	const successMsg = "The group was updated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		var req groupRequest

		if !decodeBody(w, r, &req) {
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		group, err := svc.UpdateGroup(r.Context(), id, req.Name, req.Description)
		if err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toGroupResponse(group)))
	}
}

func handleDeleteGroup(svc GroupService) http.HandlerFunc {
	const op = "api.http.handleDeleteGroup"
	const successMsg = "The group was deleted successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := svc.DeleteGroup(r.Context(), id); err != nil {
			renderLinkError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}
