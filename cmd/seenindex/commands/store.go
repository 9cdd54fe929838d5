package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex"
	"github.com/danish45007/seenindex/internal/canonical"
)

// storeOptions are shared by the store subcommands.
type storeOptions struct {
	filterFlags
	sizingFlags
	input   string
	strict  bool
	metrics bool
}

func (a *app) newStoreCommand() *cobra.Command {
	opts := &storeOptions{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage named filters kept in a directory",
		Long: `Manage a directory of named filters. Every change is logged to DIR/.wal
before it is applied, and the filters are written back when the command
finishes.`,
	}
	cmd.PersistentFlags().BoolVar(&opts.metrics, "metrics", false, "print store metrics to stderr when done")

	create := &cobra.Command{
		Use:   "create [flags] DIR NAME",
		Short: "Add an empty filter to the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStoreCreate(cmd, opts, args[0], args[1])
		},
	}
	opts.filterFlags.register(create)
	opts.sizingFlags.register(create)

	add := &cobra.Command{
		Use:   "add [flags] DIR NAME",
		Short: "Add newline-separated strings to a stored filter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStoreAdd(cmd, opts, args[0], args[1])
		},
	}
	add.Flags().StringVarP(&opts.input, "input", "i", "", "input file to read strings from (default stdin)")
	add.Flags().BoolVar(&opts.canonicalize, "canonicalize", false, "canonicalize input strings as URLs before hashing")

	query := &cobra.Command{
		Use:   "query [flags] DIR NAME [STRING]...",
		Short: "Test strings against a stored filter",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStoreQuery(cmd, opts, args[0], args[1], args[2:])
		},
	}
	query.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error if any string is absent")
	query.Flags().BoolVar(&opts.canonicalize, "canonicalize", false, "canonicalize input strings as URLs before hashing")

	list := &cobra.Command{
		Use:   "list DIR",
		Short: "List the stored filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStoreList(opts, args[0])
		},
	}

	drop := &cobra.Command{
		Use:   "drop DIR NAME",
		Short: "Remove a filter and its files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(opts, args[0], a.storeEncoding(), func(s *seenindex.Store) error {
				return s.Drop(args[1])
			})
		},
	}

	cmd.AddCommand(create, add, query, list, drop)
	return cmd
}

// storeEncoding is the encoding for filters the store creates while
// replaying its log. The config has already been validated.
func (a *app) storeEncoding() seenindex.Encoding {
	enc, err := seenindex.ParseEncoding(a.cfg.Encoding)
	if err != nil {
		return seenindex.EncodingGzip
	}
	return enc
}

// withStore opens the store in dir, runs fn and closes the store.
func (a *app) withStore(opts *storeOptions, dir string, enc seenindex.Encoding, fn func(s *seenindex.Store) error) (err error) {
	reg := prometheus.NewRegistry()
	s, err := seenindex.OpenStore(dir,
		seenindex.WithEncoding(enc),
		seenindex.WithLogger(a.logger),
		seenindex.WithMetrics(seenindex.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); err == nil {
			err = closeErr
		}
		if opts.metrics && err == nil {
			err = writeMetrics(a.stderr, reg)
		}
	}()
	return fn(s)
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func (a *app) runStoreCreate(cmd *cobra.Command, opts *storeOptions, dir, name string) error {
	s, err := a.newShape(cmd, &opts.filterFlags, "")
	if err != nil {
		return err
	}
	if s, err = opts.sizingFlags.apply(cmd, s); err != nil {
		return err
	}
	return a.withStore(opts, dir, s.encoding, func(store *seenindex.Store) error {
		if err := store.Create(name, s.exponent, s.options()...); err != nil {
			return err
		}
		a.logger.Info("filter created",
			"name", name,
			"size", humanize.IBytes(uint64(1)<<s.exponent/8),
			"rounds", s.rounds,
		)
		return nil
	})
}

func (a *app) runStoreAdd(cmd *cobra.Command, opts *storeOptions, dir, name string) error {
	canonicalize := a.cfg.Canonicalize
	if cmd.Flags().Changed("canonicalize") {
		canonicalize = opts.canonicalize
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

	return a.withStore(opts, dir, a.storeEncoding(), func(store *seenindex.Store) error {
		var addErr error
		count, err := forEachLine(cmd.Context(), in, canonicalize, func(line []byte) {
			if addErr == nil {
				addErr = store.Add(name, line)
			}
		})
		if addErr != nil {
			return addErr
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		a.logger.Info("strings added", "name", name, "strings", count)
		return nil
	})
}

func (a *app) runStoreQuery(cmd *cobra.Command, opts *storeOptions, dir, name string, items []string) error {
	canonicalize := a.cfg.Canonicalize
	if cmd.Flags().Changed("canonicalize") {
		canonicalize = opts.canonicalize
	}

	absent := 0
	err := a.withStore(opts, dir, a.storeEncoding(), func(store *seenindex.Store) error {
		// snapshot once instead of locking the store per string.
		filter, err := store.Snapshot(name)
		if err != nil {
			return err
		}
		defer filter.Release()

		check := func(item []byte) {
			verdict := "present"
			if !filter.Contains(item) {
				verdict = "absent"
				absent++
			}
			fmt.Fprintf(a.stdout, "%s\t%s\n", verdict, item)
		}
		if len(items) == 0 {
			if _, err := forEachLine(cmd.Context(), a.stdin, canonicalize, check); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}
		for _, item := range items {
			if canonicalize {
				item = canonical.URL(item)
			}
			check([]byte(item))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if opts.strict && absent > 0 {
		return errAbsent
	}
	return nil
}

func (a *app) runStoreList(opts *storeOptions, dir string) error {
	return a.withStore(opts, dir, a.storeEncoding(), func(store *seenindex.Store) error {
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "name\tsize\trounds\tinserted\tencoding")
		for _, name := range store.Names() {
			stat, err := store.Stat(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				name,
				humanize.IBytes(uint64(1)<<stat.Exponent/8),
				stat.Rounds,
				humanize.Comma(int64(stat.Inserted)),
				stat.Encoding,
			)
		}
		return tw.Flush()
	})
}
