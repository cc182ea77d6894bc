package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mapshock/internal/protocol"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the protocol catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all protocols",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := cfg.LoadCatalog()
		if err != nil {
			return err
		}

		fmt.Printf("%-10s %-6s %-6s %-5s %s\n", "ID", "TIERS", "MAND", "DEPS", "NAME")
		for _, rec := range catalog.All() {
			mand := "-"
			if rec.MandatoryFromTier > 0 {
				mand = fmt.Sprintf("%d+", rec.MandatoryFromTier)
			}
			fmt.Printf("%-10s %2d-%-3d %-6s %-5d %s\n",
				rec.ID, rec.MinTier, rec.MaxTier, mand, len(rec.Dependencies), rec.Name)
		}
		fmt.Printf("\n%d protocols, %d quarantined\n", catalog.Len(), len(catalog.Quarantined()))
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one protocol as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := cfg.LoadCatalog()
		if err != nil {
			return err
		}
		rec, ok := catalog.Get(args[0])
		if !ok {
			return fmt.Errorf("protocol not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog file and report quarantined records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var catalog *protocol.Catalog
		var err error
		if len(args) == 1 {
			catalog, err = protocol.LoadCatalogFile(args[0])
		} else {
			catalog, err = cfg.LoadCatalog()
		}
		if err != nil {
			return err
		}

		for _, q := range catalog.Quarantined() {
			fmt.Printf("quarantined %-12s %s\n", q.ID, q.Reason)
		}
		for _, a := range catalog.LoadAnomalies() {
			if a.Kind != protocol.AnomalyQuarantined {
				fmt.Println(a.String())
			}
		}

		if len(catalog.Quarantined()) > 0 || len(catalog.LoadAnomalies()) > 0 {
			return fmt.Errorf("catalog has %d quarantined records and %d anomalies",
				len(catalog.Quarantined()), len(catalog.LoadAnomalies()))
		}
		fmt.Printf("catalog ok: %d protocols\n", catalog.Len())
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}
