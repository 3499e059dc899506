package routes

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
)

//go:embed templates
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"answer": func(answers model.Answers, question string) string {
		a, _ := answers.Get(question)
		return a
	},
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"survey", "responses", "detail", "export", "message"} {
		pages[name] = template.Must(
			template.New("layout.html").
				Funcs(templateFuncs).
				ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"),
		)
	}
}

// page holds what the layout needs on every view.
type page struct {
	Title        string
	Nav          string
	CatalogError string
}

func newPage(app app.App, nav, title string) page {
	p := page{Title: title, Nav: nav}
	if app.CatalogError != nil {
		p.CatalogError = app.CatalogError.Error()
	}
	return p
}

type messagePage struct {
	page
	Message string
	Back    string
}

// renderPage executes the named page into a buffer first, so that a
// template error still yields a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].Execute(&buf, data); err != nil {
		log.Errorf("view.%s: %s", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderMessage shows msg to the user. err, when given, is logged under code.
func renderMessage(w http.ResponseWriter, app app.App, status int, code string, err error, nav, msg, back string) {
	if err != nil {
		log.Errorf("%s: %s", code, err)
	} else {
		log.Debugf("%s: %s", code, msg)
	}
	renderPage(w, status, "message", messagePage{
		page:    newPage(app, nav, http.StatusText(status)),
		Message: msg,
		Back:    back,
	})
}
