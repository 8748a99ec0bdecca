package commands

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/jcalabro/gc60"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newDumpCmd(a *app) *cobra.Command {
	var out, compression string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Sieve and write the bitset to a file",
		Long: `Sieve up to the limit and write the bitset in the gc60 persisted form:
a 38-byte header with an xxh3 checksum followed by the 16-bit blocks,
optionally compressed with lz4 or zstd.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := gc60.ParseCompression(compression)
			if err != nil {
				return errors.WithHint(err, "supported: none, lz4, zstd")
			}

			e, err := a.sieve(cmd.Context(), a.cfg.Limit)
			if err != nil {
				return err
			}
			defer e.Close()

			data, err := e.Encode(c)
			if err != nil {
				return errors.Wrap(err, "failed to encode bitset")
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return errors.Wrapf(err, "failed to write %s", out)
			}

			pterm.Success.Printfln("Wrote %s (%d bytes, %s, bitset %d bytes)",
				out, len(data), gc60.Compression(data[5]), e.Bitset().Bytes())
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "payload compression: none, lz4, zstd")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
