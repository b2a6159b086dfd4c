package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/common"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a CSV or JSON invoice sample",
		Long: `Parse a CSV or JSON invoice export and store it for later analysis.

At most the configured number of rows (200 by default) are kept. The upload
ID printed on success can be passed to analyze and template.

Examples:
  # Store a CSV export from Odoo for the UAE
  readiness upload invoices.csv --country UAE --erp Odoo

  # Store a JSON sample with the default country
  readiness upload sample.json`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().String("country", "", "Country whose e-invoicing rules apply (UAE, KSA, MY)")
	cmd.Flags().String("erp", "", "Source ERP system label")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	country, _ := cmd.Flags().GetString("country")
	erp, _ := cmd.Flags().GetString("erp")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if country == "" {
		country = settings.Analysis.DefaultCountry
	}

	upload, err := readUpload(newParser(settings), args[0], country, erp)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveUpload(ctx, upload); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}

	common.LogInfo("Stored upload", common.Fields{
		"upload_id": upload.ID,
		"rows":      upload.RowsParsed,
		"country":   upload.Country,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Uploaded %d rows", upload.RowsParsed)))
	fmt.Fprintln(out, upload.ID)
	return nil
}
