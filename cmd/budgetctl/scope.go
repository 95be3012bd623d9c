package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"famledger/internal/pagination"
	"famledger/internal/services"
)

var closeCmd = &cobra.Command{
	Use:   "close <scope-key>",
	Short: "Close every ended period of a scope and create the current one",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

var historyCmd = &cobra.Command{
	Use:   "history <scope-key>",
	Short: "Print the rollover ledger of a scope, newest period first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <scope-key>",
	Short: "Correct cached rollover amounts that disagree with the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	asOf, err := asOfDate()
	if err != nil {
		return err
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.Maintenance.CloseAndAdvance(cmd.Context(), args[0], asOf)
	if err != nil {
		return err
	}
	if result.Created > 0 || len(result.Closed) > 0 {
		e.Audit.Log(services.SystemActor, services.AuditCloseAndAdvance, "scope", args[0], "",
			map[string]interface{}{"as_of": asOf.Format(time.DateOnly), "created": result.Created, "closed": len(result.Closed), "source": "budgetctl"})
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(w, result)
	}
	fmt.Fprintf(w, "closed %d period(s), created %d, healed %d\n", len(result.Closed), result.Created, result.Healed)
	if c := result.Current; c != nil {
		fmt.Fprintf(w, "current: %s to %s, amount %s, rollover %s\n",
			c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly), c.Amount.StringFixed(2), c.RolloverAmount.StringFixed(2))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	page := pagination.PageRequest{Page: 1, PageSize: 100}
	var all []any
	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if !flagJSON {
		fmt.Fprintln(tw, "PERIOD\tTYPE\tAMOUNT\tBUDGET\tCARRIED IN\tSPENT")
	}
	for {
		resp, err := e.Maintenance.History(cmd.Context(), args[0], page)
		if err != nil {
			return err
		}
		for _, entry := range resp.Data {
			if flagJSON {
				all = append(all, entry)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", entry.Period, entry.Type, entry.Amount.StringFixed(2),
				entry.BudgetAmount.StringFixed(2), entry.PreviousRollover.StringFixed(2), entry.Spent.StringFixed(2))
		}
		if !resp.HasNext() {
			break
		}
		page = page.Next()
	}

	if flagJSON {
		if all == nil {
			all = []any{}
		}
		return printJSON(w, all)
	}
	return tw.Flush()
}

func runReconcile(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	healed, err := e.Maintenance.Reconcile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printReconcile(cmd.OutOrStdout(), args[0], healed)
}

func printReconcile(w io.Writer, scopeKey string, healed int) error {
	if flagJSON {
		return printJSON(w, map[string]any{"scope_key": scopeKey, "healed": healed})
	}
	fmt.Fprintf(w, "%s: %d period(s) healed\n", scopeKey, healed)
	return nil
}
