package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.RealIP, middlewares.RequestLogger, middleware.Recoverer)
	root.Use(middlewares.Session(app.Sessions))

	root.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/survey", http.StatusFound)
	})

	root.Get("/survey", SurveyPage(app))
	root.Post("/survey", SubmitSurvey(app))

	root.Get("/responses", BrowseResponses(app))
	root.Get(`/responses/{id:^\d+$}`, ResponseDetail(app))
	root.Get(`/responses/{id:^\d+$}/export`, ExportResponse(app))

	root.Get("/export", ExportPage(app))
	root.Get("/export/download", ExportResponses(app))

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/categories", ListCategories(app))
	api.Get("/responses", ListRecentResponses(app))
	api.Get(`/responses/{id:^\d+$}`, GetResponseById(app))

	api.Post("/session/location", SetSessionLocation(app))
	api.Delete("/session/location", ClearSessionLocation(app))

	return api
}
