package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/access-realty/directlist/internal/parcel"
)

var (
	parcelBatchSize int
	parcelAPNField  string
	parcelAddrField string
)

var parcelsCmd = &cobra.Command{
	Use:   "parcels",
	Short: "Manage the county parcel table",
}

var parcelsLoadCmd = &cobra.Command{
	Use:   "load <shapefile>",
	Short: "Import a county parcel shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fields := parcel.DefaultFieldMap()
		if parcelAPNField != "" {
			fields.APN = parcelAPNField
		}
		if parcelAddrField != "" {
			fields.Address = parcelAddrField
		}

		loader := parcel.NewLoader(st, fields, parcelBatchSize)
		stats, err := loader.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("read %d records: loaded %d, skipped %d (%d batches)\n",
			stats.Read, stats.Loaded, stats.Skipped, stats.Batches)
		return nil
	},
}

func init() {
	parcelsLoadCmd.Flags().IntVar(&parcelBatchSize, "batch-size", 500, "parcels per upsert batch")
	parcelsLoadCmd.Flags().StringVar(&parcelAPNField, "apn-field", "", "DBF attribute carrying the APN (default from config schema)")
	parcelsLoadCmd.Flags().StringVar(&parcelAddrField, "address-field", "", "DBF attribute carrying the site address")
	parcelsCmd.AddCommand(parcelsLoadCmd)
	rootCmd.AddCommand(parcelsCmd)
}
