package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex"
)

// sizingFlags derive the filter shape from an expected element count.
type sizingFlags struct {
	expected uint
	fpRate   float64
}

func (sf *sizingFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVar(&sf.expected, "expected", 0, "size the filter for this many strings (sets -b and -k unless given)")
	cmd.Flags().Float64Var(&sf.fpRate, "fp-rate", 0.01, "target false positive rate used with --expected")
}

// apply overrides the exponent and rounds of s with the suggested ones. An
// explicit --bloom-bits or --rounds still wins.
func (sf *sizingFlags) apply(cmd *cobra.Command, s shape) (shape, error) {
	if !cmd.Flags().Changed("expected") {
		if cmd.Flags().Changed("fp-rate") {
			return shape{}, errors.New("--fp-rate needs --expected")
		}
		return s, nil
	}
	exponent, rounds, err := seenindex.SuggestExponent(sf.expected, sf.fpRate)
	if err != nil {
		return shape{}, err
	}
	if !cmd.Flags().Changed("bloom-bits") {
		s.exponent = exponent
	}
	if !cmd.Flags().Changed("rounds") {
		s.rounds = rounds
	}
	return s, nil
}
