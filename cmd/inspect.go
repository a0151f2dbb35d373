package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"parcelview/internal/colorscale"
	"parcelview/internal/dataset"
	"parcelview/internal/style"
	"parcelview/internal/tui"
)

func newInspectCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the dataset: record count, CRS, scale domain and the largest variances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(cmd.Context(), cmd.OutOrStdout(), top)
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "how many parcels to list")
	return cmd
}

func (a *app) inspect(ctx context.Context, w io.Writer, top int) error {
	ds, err := a.loadDataset(ctx)
	if err != nil {
		return err
	}
	scale, err := a.scale(ds)
	if err != nil {
		return err
	}

	center := ds.Centroid()
	fmt.Fprintf(w, "Records:    %d\n", ds.Len())
	fmt.Fprintf(w, "Source CRS: %s\n", ds.SourceCRS)
	fmt.Fprintf(w, "Center:     %.6f, %.6f\n", center.Lat(), center.Lon())
	fmt.Fprintf(w, "Columns:    %s\n", strings.Join(ds.Columns, ", "))
	if scale.Valid() {
		fmt.Fprintf(w, "Scale:      %s [%g, %g]\n", scale.Caption(), scale.Min, scale.Max)
	} else {
		fmt.Fprintf(w, "Scale:      %s (no valid values)\n", scale.Caption())
	}

	if top > ds.Len() {
		top = ds.Len()
	}
	if top <= 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, topTable(ds, top, scale))
	return nil
}

// topTable renders the first n parcels with the terminal column set.
func topTable(ds *dataset.Dataset, n int, scale *colorscale.Scale) string {
	headers := append([]string{"#", ""}, tui.Headers()...)

	rows := make([][]string, 0, n)
	for i, p := range ds.Parcels[:n] {
		row := []string{fmt.Sprint(i + 1), lipgloss.NewStyle().Foreground(lipgloss.Color(style.For(p, scale).FillColor)).Render("██")}
		for _, col := range tui.Columns {
			row = append(row, p.Attribute(col))
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		Render()
}
