package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/jcalabro/gc60"
	"github.com/spf13/cobra"
)

func newIsPrimeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "isprime N...",
		Short: "Report whether each argument is prime",
		Long: `Sieve up to the largest argument and report for each one whether it is
prime. Results are cross-checked with Miller-Rabin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums := make([]uint64, len(args))
			for i, arg := range args {
				n, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return errors.WithHint(
						errors.Wrapf(err, "invalid number %q", arg),
						"arguments must be non-negative decimal integers")
				}
				nums[i] = n
			}

			limit := max(slices.Max(nums), 2)
			e, err := a.sieve(cmd.Context(), limit)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			for _, n := range nums {
				prime := e.IsPrime(n)
				if prime != gc60.MillerRabin(n) {
					return errors.Newf("sieve and Miller-Rabin disagree on %d", n)
				}
				verdict := "not prime"
				if prime {
					verdict = "prime"
				}
				fmt.Fprintf(out, "%d %s\n", n, verdict)
			}
			return nil
		},
	}
}
