package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/database"
	"github.com/mbolis/merchant-survey/export"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
	"github.com/mbolis/merchant-survey/store"
)

type exportOptions struct {
	Format   string
	Category string
	Merchant string
	Out      string
}

func newExportCommand(cfg *config.Config) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored responses to a CSV, XLSX or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runExport(cmd.Context(), *cfg, *opts, time.Now())
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "csv", "export format (csv|xlsx|json)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only responses of this category")
	cmd.Flags().StringVar(&opts.Merchant, "merchant", "", "only responses of this merchant")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", ".", "output directory")
	return cmd
}

// runExport writes the export file into opts.Out and returns its path.
func runExport(ctx context.Context, cfg config.Config, opts exportOptions, now time.Time) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return "", err
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Error("export.db.open:", err)
		return "", err
	}
	defer db.Close()

	all, err := store.New(db).ListAll(ctx)
	if err != nil {
		log.Error("export.db.list_all:", err)
		return "", err
	}

	filter := export.Filter{
		Category:     model.NormalizeText(opts.Category),
		MerchantName: model.NormalizeText(opts.Merchant),
	}
	selected := filter.Apply(all)
	payload, err := export.Export(format, selected, filter.Scope(), now)
	if err != nil {
		return "", err
	}

	path := filepath.Join(opts.Out, payload.Filename)
	if err = os.WriteFile(path, payload.Body, 0o644); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"path": path, "responses": len(selected)}).Info("export.written")
	return path, nil
}
