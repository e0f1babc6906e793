package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/spendsense/finance-api/internal/advisor"
	"github.com/spendsense/finance-api/internal/failover"
)

var summarizeProgress bool

// progressPrinter writes per-attempt progress lines to stderr so stdout
// stays clean for the summary itself.
type progressPrinter struct{}

func (progressPrinter) Emit(o failover.Outcome) {
	switch o.Kind {
	case failover.KindTrying:
		fmt.Fprintf(os.Stderr, "trying %s...\n", o.Provider)
	case failover.KindSuccess:
		fmt.Fprintf(os.Stderr, "%s answered\n", o.Provider)
	default:
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", o.Provider, o.Kind)
	}
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [month.json]",
	Short: "Produce an AI spending summary for one month",
	Long:  "Reads a month payload (year, month, current/previous transactions, budgets) from the given file or stdin and prints the model's summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var req struct {
			Year     int                   `json:"year"`
			Month    int                   `json:"month"`
			Current  []advisor.Transaction `json:"current"`
			Previous []advisor.Transaction `json:"previous"`
			Budgets  []advisor.Budget      `json:"budgets"`
			Context  *advisor.MonthContext `json:"context"`
		}
		if err := json.NewDecoder(in).Decode(&req); err != nil {
			return eris.Wrap(err, "decode month payload")
		}

		mctx := req.Context
		if mctx == nil {
			mctx = advisor.BuildMonthContext(req.Year, req.Month, req.Current, req.Previous, req.Budgets)
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var summary *advisor.Summary
		if summarizeProgress {
			summary, err = env.Advisor.SummarizeStream(cmd.Context(), mctx, progressPrinter{})
			if eris.Is(err, advisor.ErrNoTransactions) {
				fmt.Println(advisor.NoDataSummary)
				return nil
			}
		} else {
			summary, err = env.Advisor.Summarize(cmd.Context(), mctx)
		}
		if err != nil {
			if eris.Is(err, advisor.ErrAllBusy) {
				return eris.New(advisor.BusyMessage)
			}
			return err
		}

		fmt.Println(summary.Summary)
		if summary.Model != "" {
			fmt.Fprintf(os.Stderr, "model: %s\n", summary.Model)
		}
		return nil
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeProgress, "progress", false, "print per-model progress to stderr")
	rootCmd.AddCommand(summarizeCmd)
}
