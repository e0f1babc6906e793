package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendsense/finance-api/internal/extract"
)

var parseRawText bool

var parseCmd = &cobra.Command{
	Use:   "parse <receipt-image>",
	Short: "Extract structured fields from a receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var res *extract.Result
		if parseRawText {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res = env.Pipeline.ParseText(cmd.Context(), string(data))
		} else {
			res, err = env.Pipeline.Parse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseRawText, "text", false, "treat the argument as an OCR text file instead of an image")
	rootCmd.AddCommand(parseCmd)
}
