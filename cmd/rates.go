package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendsense/finance-api/internal/rates"
)

var ratesForce bool

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the current gold, silver and currency rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		snap := env.Rates.GetRates(cmd.Context(), ratesForce)
		return printSnapshot(snap)
	},
}

func printSnapshot(snap *rates.Snapshot) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func init() {
	ratesCmd.Flags().BoolVar(&ratesForce, "force", false, "bypass the cache window and refetch")
	rootCmd.AddCommand(ratesCmd)
}
