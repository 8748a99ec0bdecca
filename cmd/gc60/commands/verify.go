package commands

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jcalabro/gc60"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// smallDivisorBlocks is the window checked against 7..19 from block 0.
const smallDivisorBlocks = 1024

func newVerifyCmd(a *app) *cobra.Command {
	var (
		divisor     uint64
		blocks      int
		multiplesOf uint64
		multiples   int
		certify     int
		seed        uint64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Cross-check the sieve against independent tests",
		Long: `Sieve up to the limit and cross-check the result:

  divisor       no survivor in --blocks random blocks is a proper multiple of --divisor
  multiples     the first --multiples odd multiples of --multiples-of from its square are eliminated
  small         no survivor in the first blocks is a proper multiple of 7..19
  certify       --certify random survivors pass Miller-Rabin

A seed of 0 picks one from the clock; the seed used is printed so a run can
be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if divisor < 2 {
				return errors.WithHint(
					errors.Wrapf(gc60.ErrInvalidDivisor, "--divisor %d", divisor),
					"every integer is a multiple of 0 or 1; pick a divisor such as 7")
			}
			if multiplesOf == 1 {
				return errors.WithHint(
					errors.Wrapf(gc60.ErrInvalidDivisor, "--multiples-of %d", multiplesOf),
					"use 0 to skip the multiples check")
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

			e, err := a.sieve(cmd.Context(), a.cfg.Limit)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %d\n", seed)
			table := pterm.TableData{{"Check", "Inspected", "Result"}}
			var failed []string

			rep, err := e.SampleDivisor(rng, divisor, blocks)
			if err != nil {
				return errors.Wrap(err, "divisor check")
			}
			fmt.Fprintf(out, "divisor %d: %d blocks, %d candidates, %d violations\n",
				divisor, len(rep.Blocks), rep.Checked, len(rep.Violations))
			table = append(table, []string{fmt.Sprintf("divisor %d", divisor), fmt.Sprint(rep.Checked), verdict(len(rep.Violations) == 0)})
			if len(rep.Violations) > 0 {
				failed = append(failed, fmt.Sprintf("divisor %d divides %v", divisor, rep.Violations))
			}

			if multiplesOf > 0 {
				n, err := e.CheckMultiples(multiplesOf, multiples)
				switch {
				case errors.Is(err, gc60.ErrCompositeSurvived):
					failed = append(failed, err.Error())
				case err != nil:
					return errors.Wrap(err, "multiples check")
				}
				fmt.Fprintf(out, "multiples of %d: %d checked\n", multiplesOf, n)
				table = append(table, []string{fmt.Sprintf("multiples of %d", multiplesOf), fmt.Sprint(n), verdict(err == nil)})
			}

			bad := e.CheckSmallDivisors(0, smallDivisorBlocks-1)
			fmt.Fprintf(out, "small divisors: %d survivors\n", len(bad))
			table = append(table, []string{"small divisors", fmt.Sprintf("%d blocks", min(smallDivisorBlocks, e.NumBlocks())), verdict(len(bad) == 0)})
			if len(bad) > 0 {
				failed = append(failed, fmt.Sprintf("small divisors divide %v", bad))
			}

			if certify > 0 {
				cert, err := e.Certify(rng, certify)
				if err != nil {
					return errors.Wrap(err, "certification")
				}
				fmt.Fprintf(out, "certify: %d/%d passed\n", cert.Passed, cert.Tested)
				table = append(table, []string{"miller-rabin", fmt.Sprint(cert.Tested), verdict(len(cert.Failures) == 0)})
				if len(cert.Failures) > 0 {
					failed = append(failed, fmt.Sprintf("composites %v survived", cert.Failures))
				}
			}

			if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
				return errors.Wrap(err, "failed to render summary")
			}

			if len(failed) > 0 {
				return errors.Newf("verification failed: %v", failed)
			}
			pterm.Success.Println("All checks passed")
			return nil
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&divisor, "divisor", 7, "divisor for the random block check")
	f.IntVar(&blocks, "blocks", 100, "random blocks to inspect")
	f.Uint64Var(&multiplesOf, "multiples-of", 0, "prime whose multiples are walked (0 = skip)")
	f.IntVar(&multiples, "multiples", 1000, "multiples to walk")
	f.IntVar(&certify, "certify", 100, "random survivors to test with Miller-Rabin (0 = skip)")
	f.Uint64Var(&seed, "seed", 0, "random seed (0 = from the clock)")
	return cmd
}

func verdict(ok bool) string {
	if ok {
		return pterm.Green("ok")
	}
	return pterm.Red("FAIL")
}
