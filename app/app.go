package app

import (
	"time"

	"github.com/mbolis/merchant-survey/catalog"
	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/form"
	"github.com/mbolis/merchant-survey/store"
)

type App struct {
	*store.Store
	*form.Controller
	Sessions *form.Sessions
	config.Config

	// CatalogError is the catalog load failure shown to users, if any.
	CatalogError error
	Now          func() time.Time
}

// Catalog returns the catalog the survey controller was built with.
func (a App) Catalog() *catalog.Catalog {
	return a.Controller.Catalog()
}
