package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/store"
)

var (
	leadsSource string
	leadsSince  string
	leadsLimit  int
	leadsOut    string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and export captured leads",
}

func leadFilter() (store.LeadFilter, error) {
	filter := store.LeadFilter{Source: leadsSource, Limit: leadsLimit}
	if leadsSince != "" {
		since, err := time.Parse("2006-01-02", leadsSince)
		if err != nil {
			return filter, eris.Wrapf(err, "parse --since %q", leadsSince)
		}
		filter.Since = since
	}
	return filter, nil
}

func touchSummary(p *attribution.TrackingParams) string {
	if p == nil {
		return ""
	}
	return p.Summary()
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter, err := leadFilter()
		if err != nil {
			return err
		}
		leads, err := st.ListLeads(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tNAME\tEMAIL\tSOURCE\tFIRST TOUCH\tCONVERTING TOUCH")
		for _, l := range leads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.CreatedAt.Format("2006-01-02 15:04"),
				l.Name, l.Email, l.Source,
				touchSummary(l.FirstTouch), touchSummary(l.ConvertingTouch),
			)
		}
		return w.Flush()
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter, err := leadFilter()
		if err != nil {
			return err
		}
		leads, err := st.ListLeads(cmd.Context(), filter)
		if err != nil {
			return err
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Leads")
		if err != nil {
			return eris.Wrap(err, "add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{
			"Created", "Name", "Email", "Phone", "Address", "Source", "Message",
			"First Touch", "Latest Touch", "Converting Touch",
		} {
			header.AddCell().Value = h
		}

		for _, l := range leads {
			row := sheet.AddRow()
			for _, v := range []string{
				l.CreatedAt.Format(time.RFC3339),
				l.Name, l.Email, l.Phone, l.Address, l.Source, l.Message,
				touchSummary(l.FirstTouch), touchSummary(l.LatestTouch), touchSummary(l.ConvertingTouch),
			} {
				row.AddCell().Value = v
			}
		}

		if err := file.Save(leadsOut); err != nil {
			return eris.Wrapf(err, "save %s", leadsOut)
		}
		zap.L().Info("exported leads",
			zap.Int("count", len(leads)),
			zap.String("path", leadsOut),
		)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().StringVar(&leadsSource, "source", "", "filter by lead source")
		c.Flags().StringVar(&leadsSince, "since", "", "only leads created on or after this date (YYYY-MM-DD)")
		c.Flags().IntVar(&leadsLimit, "limit", 1000, "maximum leads to return")
	}
	leadsExportCmd.Flags().StringVar(&leadsOut, "out", "leads.xlsx", "output path")
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
