package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/export"
	"github.com/mbolis/merchant-survey/form"
	"github.com/mbolis/merchant-survey/geo"
	"github.com/mbolis/merchant-survey/httpx"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
	"github.com/mbolis/merchant-survey/routes/middlewares"
)

type surveyPage struct {
	page
	Categories []string
	Category   model.Category
	Session    form.Snapshot
	Confirmed  bool
	Formats    []export.Format
}

type surveyForm struct {
	Category     string   `form:"category"`
	MerchantName string   `form:"merchant_name"`
	Answers      []string `form:"answers"`
	Latitude     string   `form:"latitude"`
	Longitude    string   `form:"longitude"`
}

func renderSurvey(w http.ResponseWriter, app app.App, status int, s *form.Session, errs ...string) {
	snap := s.Snapshot()
	data := surveyPage{
		page:       newPage(app, "survey", "Business Category Survey"),
		Categories: app.Catalog().Names(),
		Session:    snap,
		Confirmed:  snap.State == form.StateConfirmed,
		Formats:    export.Formats,
	}
	if snap.Category != "" {
		data.Category, _ = app.Catalog().Category(snap.Category)
	}
	data.Session.Messages = append(data.Session.Messages, errs...)
	renderPage(w, status, "survey", data)
}

func SurveyPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middlewares.SessionFrom(r.Context())

		category := r.URL.Query().Get("category")
		if category == "" {
			category = s.Snapshot().Category
		}
		if category == "" {
			if names := app.Catalog().Names(); len(names) > 0 {
				category = names[0]
			}
		}
		if category == "" {
			renderSurvey(w, app, http.StatusOK, s)
			return
		}

		if err := app.Select(s, category); err != nil {
			log.Debugf("survey.select: %s", err)
			renderSurvey(w, app, http.StatusNotFound, s, "Unknown category: "+category)
			return
		}
		renderSurvey(w, app, http.StatusOK, s)
	}
}

func SubmitSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middlewares.SessionFrom(r.Context())

		f := surveyForm{}
		if err := render.DecodeForm(r.Body, &f); err != nil {
			log.Debugf("request.parse_form: %s", err)
			renderSurvey(w, app, http.StatusBadRequest, s, "The form could not be read, please try again.")
			return
		}

		if err := app.Select(s, f.Category); err != nil {
			log.Debugf("survey.select: %s", err)
			renderSurvey(w, app, http.StatusBadRequest, s, "Unknown category: "+f.Category)
			return
		}
		category, _ := app.Catalog().Category(f.Category)

		var errs []string
		for i, q := range category.Questions {
			if i >= len(f.Answers) || f.Answers[i] == "" {
				continue
			}
			if err := app.Answer(s, q.Text, f.Answers[i]); err != nil {
				errs = append(errs, err.Error())
			}
		}
		app.SetMerchantName(s, f.MerchantName)

		loc, ok, err := geo.ParseCoordinates(f.Latitude, f.Longitude)
		if err != nil {
			errs = append(errs, err.Error())
		} else if ok {
			if _, err = app.SetLocation(r.Context(), s, loc.Latitude, loc.Longitude); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			log.Debugf("survey.submit.invalid: %v", errs)
			renderSurvey(w, app, http.StatusBadRequest, s, errs...)
			return
		}

		id, err := app.Submit(r.Context(), s)
		var verr form.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Debugf("survey.submit.invalid: %v", verr.Messages())
			renderSurvey(w, app, http.StatusBadRequest, s)
		case err != nil:
			log.Errorf("db.create_response: %s", err)
			renderSurvey(w, app, http.StatusInternalServerError, s)
		default:
			log.WithFields(log.Fields{"id": id, "category": category.Name}).Info("survey.submitted")
			renderSurvey(w, app, http.StatusCreated, s)
		}
	}
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// SetSessionLocation receives the coordinates captured by the browser.
func SetSessionLocation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := middlewares.SessionFrom(r.Context())

		req := locationRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.Latitude == nil || req.Longitude == nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		loc, err := app.SetLocation(r.Context(), s, *req.Latitude, *req.Longitude)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]any{"error": err.Error()})
			return
		}
		render.JSON(w, r, loc)
	}
}

func ClearSessionLocation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.ClearLocation(middlewares.SessionFrom(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}
