package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/export"
	"github.com/mbolis/merchant-survey/httpx"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
)

type responsesPage struct {
	page
	Responses []model.SurveyResponse
	Total     int
	Limit     int
	MaxLimit  int
}

type detailPage struct {
	page
	Response model.SurveyResponse
	Formats  []export.Format
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return max(1, min(fallback, config.MaxRecentLimit)), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > config.MaxRecentLimit {
		return 0, fmt.Errorf("limit must be a number between 1 and %d", config.MaxRecentLimit)
	}
	return limit, nil
}

func BrowseResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, app.RecentLimit)
		if err != nil {
			renderMessage(w, app, http.StatusBadRequest, "request.limit", nil, "responses", err.Error(), "/responses")
			return
		}

		responses, err := app.ListRecent(r.Context(), limit)
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.list_recent", err, "responses", "Responses could not be loaded.", "/responses")
			return
		}
		total, err := app.Count(r.Context())
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.count", err, "responses", "Responses could not be loaded.", "/responses")
			return
		}

		renderPage(w, http.StatusOK, "responses", responsesPage{
			page:      newPage(app, "responses", "Survey responses"),
			Responses: responses,
			Total:     total,
			Limit:     limit,
			MaxLimit:  config.MaxRecentLimit,
		})
	}
}

func ResponseDetail(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			renderMessage(w, app, http.StatusBadRequest, "request.get_url_param.id", nil, "responses", "Invalid response id.", "/responses")
			return
		}

		response, ok, err := app.Get(r.Context(), id)
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.get_response", err, "responses", "The response could not be loaded.", "/responses")
			return
		}
		if !ok {
			renderMessage(w, app, http.StatusNotFound, "get_response", nil, "responses", fmt.Sprintf("Response #%d does not exist.", id), "/responses")
			return
		}

		renderPage(w, http.StatusOK, "detail", detailPage{
			page:     newPage(app, "responses", fmt.Sprintf("Response #%d", id)),
			Response: response,
			Formats:  export.Formats,
		})
	}
}

// API

func ListCategories(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories := app.Catalog().Categories()
		if categories == nil {
			categories = []model.Category{}
		}
		body := map[string]any{
			"categories": categories,
		}
		if app.CatalogError != nil {
			body["error"] = app.CatalogError.Error()
		}
		render.JSON(w, r, body)
	}
}

func ListRecentResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, app.RecentLimit)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.limit", "%s", err)
			return
		}

		responses, err := app.ListRecent(r.Context(), limit)
		if err != nil {
			httpx.LogInternalError(w, "db.list_recent", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

func GetResponseById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		response, ok, err := app.Get(r.Context(), id)
		if err != nil {
			httpx.LogInternalError(w, "db.get_response", err)
			return
		}
		if !ok {
			httpx.LogNotFound(w, "get_response", id)
			return
		}

		render.JSON(w, r, response)
	}
}
