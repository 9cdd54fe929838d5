package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex"
)

type createOptions struct {
	filterFlags
	sizingFlags
	input    string
	manifest bool
}

func (a *app) newCreateCommand() *cobra.Command {
	opts := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create [flags] OUTFILE",
		Short: "Create a Bloom filter from newline-separated strings",
		Long: `Create a Bloom filter from a newline-separated list of input strings.
OUTFILE is where the filter is stored. Nothing is written if reading the
input or building the filter fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCreate(cmd, opts, args[0])
		},
	}
	opts.filterFlags.register(cmd)
	opts.sizingFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input file to read strings from (default stdin)")
	cmd.Flags().BoolVar(&opts.manifest, "manifest", true, "write OUTFILE.manifest with the filter parameters")
	return cmd
}

func (a *app) runCreate(cmd *cobra.Command, opts *createOptions, outfile string) error {
	s, err := a.newShape(cmd, &opts.filterFlags, outfile)
	if err != nil {
		return err
	}
	if s, err = opts.sizingFlags.apply(cmd, s); err != nil {
		return err
	}

	var in io.Reader = a.stdin
	if opts.input != "" {
		file, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("unable to open input file: %w", err)
		}
		defer file.Close()
		in = file
	}

	filter, err := seenindex.New(s.exponent, s.options()...)
	if err != nil {
		return fmt.Errorf("unable to create Bloom filter: %w", err)
	}
	defer filter.Release()

	count, err := forEachLine(cmd.Context(), in, s.canonicalize, filter.Add)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if err := seenindex.WriteFile(outfile, filter, s.encoding); err != nil {
		return err
	}
	if opts.manifest {
		manifest := seenindex.ManifestFor(filter, s.encoding, uint64(count))
		if err := seenindex.WriteManifestFile(outfile+seenindex.ManifestSuffix, manifest); err != nil {
			return err
		}
	}

	a.logger.Info("filter written",
		"path", outfile,
		"strings", count,
		"size", humanize.IBytes(uint64(filter.Len())),
		"exponent", filter.Exponent(),
		"rounds", filter.Rounds(),
		"encoding", s.encoding.String(),
		"fill_ratio", filter.FillRatio(),
		"est_false_positive_rate", filter.EstimatedFalsePositiveRate(uint64(count)),
	)
	return nil
}
