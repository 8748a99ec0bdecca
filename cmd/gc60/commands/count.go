package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count the primes up to the limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.sieve(cmd.Context(), a.cfg.Limit)
			if err != nil {
				return err
			}
			defer e.Close()

			n := e.Count()
			pterm.Success.Printfln("%d primes up to %d", n, a.cfg.Limit)
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
