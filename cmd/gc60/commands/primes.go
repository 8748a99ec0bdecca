package commands

import (
	"bufio"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newPrimesCmd(a *app) *cobra.Command {
	var from, to uint64
	var maxCount int

	cmd := &cobra.Command{
		Use:   "primes",
		Short: "Print the primes in a window",
		Long: `Print the primes p with from <= p <= to, one per line.

The sieve runs up to --to when it is given, otherwise up to the limit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := a.cfg.Limit
			if to > 0 {
				limit = to
			}
			if from > limit {
				return errors.WithHint(
					errors.Newf("window start %d is beyond %d", from, limit),
					"--from must not exceed --to")
			}

			e, err := a.sieve(cmd.Context(), limit)
			if err != nil {
				return err
			}
			defer e.Close()

			w := bufio.NewWriter(cmd.OutOrStdout())
			var n int
			for p := range e.PrimesBetween(from, limit) {
				if maxCount > 0 && n == maxCount {
					break
				}
				w.WriteString(strconv.FormatUint(p, 10))
				w.WriteByte('\n')
				n++
			}
			return errors.Wrap(w.Flush(), "failed to write primes")
		},
	}

	cmd.Flags().Uint64Var(&from, "from", 0, "smallest value to print")
	cmd.Flags().Uint64Var(&to, "to", 0, "largest value to print (default the limit)")
	cmd.Flags().IntVar(&maxCount, "max", 0, "stop after this many primes (0 = no cap)")
	return cmd
}
