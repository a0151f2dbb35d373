package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parcelview/internal/database"
	"parcelview/internal/export"
)

type exportOptions struct {
	out     string
	geojson string
	oracle  bool
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the lead list as CSV, optionally as GeoJSON or into Oracle",
		Long: `Export writes every non-geometry attribute of every parcel, in dataset
order (largest variance first), to a CSV file. Use "-" for stdout.

--geojson also writes the styled map layer, and --oracle inserts the same
rows into the configured Oracle table, creating it if needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportLeads(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", export.LeadsFileName, "CSV output path, - for stdout")
	cmd.Flags().StringVar(&opts.geojson, "geojson", "", "also write the styled GeoJSON layer to this path")
	cmd.Flags().BoolVar(&opts.oracle, "oracle", false, "also insert the rows into the configured Oracle table")
	return cmd
}

func (a *app) exportLeads(ctx context.Context, opts exportOptions) error {
	ds, err := a.loadDataset(ctx)
	if err != nil {
		return err
	}

	if opts.out == "-" {
		if err := export.WriteCSV(os.Stdout, ds); err != nil {
			return err
		}
	} else {
		data, err := export.CSV(ds)
		if err != nil {
			return err
		}
		if err := export.WriteFile(opts.out, data); err != nil {
			return err
		}
		a.logger.Info("wrote lead list", "path", opts.out, "parcels", ds.Len())
	}

	if opts.geojson != "" {
		scale, err := a.scale(ds)
		if err != nil {
			return err
		}
		data, err := export.LayerJSON(ds, scale)
		if err != nil {
			return err
		}
		if err := export.WriteFile(opts.geojson, data); err != nil {
			return err
		}
		a.logger.Info("wrote map layer", "path", opts.geojson)
	}

	if opts.oracle {
		db, err := database.NewDatabase(ctx, database.DBConfig{
			Username:       a.cfg.Oracle.Username,
			Password:       a.cfg.Oracle.Password,
			Host:           a.cfg.Oracle.Host,
			Port:           a.cfg.Oracle.Port,
			Service:        a.cfg.Oracle.Service,
			WalletLocation: a.cfg.Oracle.WalletLocation,
			Table:          a.cfg.Oracle.Table,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		header, rows := export.Records(ds)
		n, err := db.ExportLeads(ctx, header, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Inserted %d rows into %s\n", n, a.cfg.Oracle.Table)
	}
	return nil
}
