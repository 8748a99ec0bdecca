package commands

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/jcalabro/gc60"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLoadCmd(a *app) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a dumped bitset and print its prime count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(in)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", in)
			}

			e, err := gc60.UnmarshalBinary(data, a.options()...)
			switch {
			case errors.Is(err, gc60.ErrChecksumMismatch), errors.Is(err, gc60.ErrInvalidData):
				return errors.WithHint(errors.Wrapf(err, "failed to load %s", in),
					"the file is truncated or corrupted; dump it again")
			case errors.Is(err, gc60.ErrUnsupportedVersion):
				return errors.WithHint(errors.Wrapf(err, "failed to load %s", in),
					"the file was written by a different gc60 version")
			case err != nil:
				return errors.Wrapf(err, "failed to load %s", in)
			}
			defer e.Close()

			n := e.Count()
			err = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
				{"File", "Limit", "Blocks", "Primes"},
				{in, fmt.Sprint(e.Limit()), fmt.Sprint(e.NumBlocks()), fmt.Sprint(n)},
			}).Render()
			if err != nil {
				return errors.Wrap(err, "failed to render summary")
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "input file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
