package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex"
)

type mergeOptions struct {
	filterFlags
	manifest bool
}

func (a *app) newMergeCommand() *cobra.Command {
	opts := &mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge [flags] OUTFILE INFILE...",
		Short: "Union filters of the same size into OUTFILE",
		Long: `Union filters into OUTFILE. Every input must have been built with the
same exponent and round count; the result answers "present" for anything
any input held.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMerge(cmd, opts, args[0], args[1:])
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.manifest, "manifest", true, "write OUTFILE.manifest with the filter parameters")
	return cmd
}

func (a *app) runMerge(cmd *cobra.Command, opts *mergeOptions, outfile string, inputs []string) error {
	var (
		merged   *seenindex.Filter
		inserted uint64
	)
	for _, path := range inputs {
		filter, s, err := a.openFilter(cmd, &opts.filterFlags, path)
		if err != nil {
			return err
		}
		if s.manifest != nil {
			inserted += s.manifest.Inserted
		}
		if merged == nil {
			merged = filter
			continue
		}
		if err := merged.Combine(filter); err != nil {
			return fmt.Errorf("merge %s: %w", path, err)
		}
		filter.Release()
	}
	defer merged.Release()

	encoding := seenindex.EncodingFromPath(outfile)
	if cmd.Flags().Changed("encoding") {
		enc, err := seenindex.ParseEncoding(opts.encoding)
		if err != nil {
			return err
		}
		encoding = enc
	}
	if err := seenindex.WriteFile(outfile, merged, encoding); err != nil {
		return err
	}
	if opts.manifest {
		manifest := seenindex.ManifestFor(merged, encoding, inserted)
		if err := seenindex.WriteManifestFile(outfile+seenindex.ManifestSuffix, manifest); err != nil {
			return err
		}
	}
	a.logger.Info("filters merged", "path", outfile, "inputs", len(inputs), "fill_ratio", merged.FillRatio())
	return nil
}
