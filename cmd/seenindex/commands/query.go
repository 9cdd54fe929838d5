package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex/internal/canonical"
)

// errAbsent makes query exit non-zero under --strict.
var errAbsent = errors.New("one or more strings are absent")

type queryOptions struct {
	filterFlags
	strict bool
}

func (a *app) newQueryCommand() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [flags] FILTER [STRING]...",
		Short: "Test strings against a filter",
		Long: `Test strings against a filter. Strings come from the arguments, or from
stdin one per line when none are given. Each result is printed as
"present" or "absent" followed by a tab and the string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, opts, args[0], args[1:])
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error if any string is absent")
	return cmd
}

func (a *app) runQuery(cmd *cobra.Command, opts *queryOptions, path string, items []string) error {
	filter, s, err := a.openFilter(cmd, &opts.filterFlags, path)
	if err != nil {
		return err
	}
	defer filter.Release()

	absent := 0
	check := func(item []byte) {
		verdict := "present"
		if !filter.Contains(item) {
			verdict = "absent"
			absent++
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", verdict, item)
	}

	if len(items) > 0 {
		for _, item := range items {
			if s.canonicalize {
				item = canonical.URL(item)
			}
			check([]byte(item))
		}
	} else if _, err := forEachLine(cmd.Context(), a.stdin, s.canonicalize, check); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	a.logger.Debug("query finished", "path", path, "absent", absent)
	if opts.strict && absent > 0 {
		return errAbsent
	}
	return nil
}
