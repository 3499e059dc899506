package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/export"
	"github.com/mbolis/merchant-survey/httpx"
	"github.com/mbolis/merchant-survey/model"
)

type exportPage struct {
	page
	Total      int
	Categories []string
	Formats    []export.Format
}

func ExportPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := app.Count(r.Context())
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.count", err, "export", "Responses could not be loaded.", "/export")
			return
		}

		renderPage(w, http.StatusOK, "export", exportPage{
			page:       newPage(app, "export", "Export responses"),
			Total:      total,
			Categories: app.Catalog().Names(),
			Formats:    export.Formats,
		})
	}
}

// ExportResponses downloads every stored response, optionally narrowed by
// exact category and/or merchant name.
func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			renderMessage(w, app, http.StatusBadRequest, "request.format", nil, "export", err.Error(), "/export")
			return
		}
		filter := export.Filter{
			Category:     model.NormalizeText(q.Get("category")),
			MerchantName: model.NormalizeText(q.Get("merchant")),
		}

		all, err := app.ListAll(r.Context())
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.list_all", err, "export", "Responses could not be loaded.", "/export")
			return
		}

		payload, err := export.Export(format, filter.Apply(all), filter.Scope(), app.Now())
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "export."+string(format), err, "export", "The export could not be generated.", "/export")
			return
		}
		httpx.WriteDownload(w, payload)
	}
}

// ExportResponse downloads a single response.
func ExportResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			renderMessage(w, app, http.StatusBadRequest, "request.get_url_param.id", nil, "responses", "Invalid response id.", "/responses")
			return
		}
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			renderMessage(w, app, http.StatusBadRequest, "request.format", nil, "responses", err.Error(), "/responses")
			return
		}

		response, ok, err := app.Get(r.Context(), id)
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "db.get_response", err, "responses", "The response could not be loaded.", "/responses")
			return
		}
		if !ok {
			renderMessage(w, app, http.StatusNotFound, "get_response", nil, "responses", "Response #"+strconv.FormatInt(id, 10)+" does not exist.", "/responses")
			return
		}

		payload, err := export.Export(format, []model.SurveyResponse{response}, export.ResponseScope(id), app.Now())
		if err != nil {
			renderMessage(w, app, http.StatusInternalServerError, "export."+string(format), err, "responses", "The export could not be generated.", "/responses")
			return
		}
		httpx.WriteDownload(w, payload)
	}
}
