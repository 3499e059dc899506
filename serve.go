package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/catalog"
	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/database"
	"github.com/mbolis/merchant-survey/form"
	"github.com/mbolis/merchant-survey/geo"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/routes"
	"github.com/mbolis/merchant-survey/store"
)

const sessionTTL = 12 * time.Hour

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the survey web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*cfg)
		},
	}
	cfg.BindServerFlags(cmd.Flags())
	return cmd
}

func serve(cfg config.Config) error {
	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Error("main.db.open:", err)
		return err
	}
	defer db.Close()

	cat, catErr := catalog.NewLoader(cfg.CatalogPath).Load()
	if catErr != nil {
		log.Error("main.catalog:", catErr)
	}

	st := store.New(db)
	a := app.App{
		Store:        st,
		Controller:   form.NewController(cat, st, geo.New(cfg.GeocoderURL, cfg.GeocoderTimeout)),
		Sessions:     form.NewSessions(sessionTTL),
		Config:       cfg,
		CatalogError: catErr,
		Now:          time.Now,
	}

	err = runServer(cfg, routes.Wire(a))
	if !errors.Is(err, http.ErrServerClosed) {
		log.Error("main.server:", err)
		return err
	}
	return nil
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
