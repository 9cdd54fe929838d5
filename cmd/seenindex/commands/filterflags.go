package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danish45007/seenindex"
)

// filterFlags are the filter shape flags shared by the subcommands. Unset
// flags fall back to a manifest next to the filter, then to the config.
type filterFlags struct {
	bloomBits    int
	rounds       uint32
	encoding     string
	canonicalize bool
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&ff.bloomBits, "bloom-bits", "b", 0, "use 2^EXP bits for the filter (default from config, 27)")
	cmd.Flags().Uint32VarP(&ff.rounds, "rounds", "k", 0, "hash rounds per string (default from config, 23)")
	cmd.Flags().StringVar(&ff.encoding, "encoding", "", "file encoding: raw, gzip or zlib (default from suffix or config)")
	cmd.Flags().BoolVar(&ff.canonicalize, "canonicalize", false, "canonicalize input strings as URLs before hashing")
}

// shape is the resolved configuration of one filter file.
type shape struct {
	exponent     int // 0 means infer from the file.
	rounds       uint32
	encoding     seenindex.Encoding
	canonicalize bool
	manifest     *seenindex.Manifest
}

func (s shape) options() []seenindex.Option {
	return []seenindex.Option{seenindex.WithRounds(s.rounds)}
}

// newShape resolves the shape of a filter that is about to be written.
func (a *app) newShape(cmd *cobra.Command, ff *filterFlags, path string) (shape, error) {
	s := shape{
		exponent:     a.cfg.BloomBits,
		rounds:       a.cfg.Rounds,
		canonicalize: a.cfg.Canonicalize,
	}
	enc, err := seenindex.ParseEncoding(a.cfg.Encoding)
	if err != nil {
		return shape{}, err
	}
	if fromPath := seenindex.EncodingFromPath(path); fromPath != seenindex.EncodingRaw {
		enc = fromPath
	}
	s.encoding = enc
	return a.applyFlags(cmd, ff, s)
}

// existingShape resolves the shape of a filter file on disk, preferring its
// manifest when there is one.
func (a *app) existingShape(cmd *cobra.Command, ff *filterFlags, path string) (shape, error) {
	s := shape{
		rounds:       a.cfg.Rounds,
		encoding:     seenindex.EncodingFromPath(path),
		canonicalize: a.cfg.Canonicalize,
	}
	manifest, err := seenindex.ReadManifestFile(path + seenindex.ManifestSuffix)
	switch {
	case err == nil:
		s.exponent = manifest.Exponent
		s.rounds = manifest.Rounds
		s.encoding = manifest.Encoding
		s.manifest = &manifest
	case errors.Is(err, os.ErrNotExist):
	default:
		return shape{}, err
	}
	return a.applyFlags(cmd, ff, s)
}

func (a *app) applyFlags(cmd *cobra.Command, ff *filterFlags, s shape) (shape, error) {
	if cmd.Flags().Changed("bloom-bits") {
		if ff.bloomBits < seenindex.MinExponent || ff.bloomBits > seenindex.MaxExponent {
			return shape{}, fmt.Errorf("%w: --bloom-bits %d", seenindex.ErrInvalidSize, ff.bloomBits)
		}
		s.exponent = ff.bloomBits
	}
	if cmd.Flags().Changed("rounds") {
		if ff.rounds == 0 {
			return shape{}, seenindex.ErrInvalidRounds
		}
		s.rounds = ff.rounds
	}
	if cmd.Flags().Changed("encoding") {
		enc, err := seenindex.ParseEncoding(ff.encoding)
		if err != nil {
			return shape{}, err
		}
		s.encoding = enc
	}
	if cmd.Flags().Changed("canonicalize") {
		s.canonicalize = ff.canonicalize
	}
	return s, nil
}

// openFilter reads the filter at path with the resolved shape.
func (a *app) openFilter(cmd *cobra.Command, ff *filterFlags, path string) (*seenindex.Filter, shape, error) {
	s, err := a.existingShape(cmd, ff, path)
	if err != nil {
		return nil, shape{}, err
	}
	f, err := seenindex.ReadFile(path, s.exponent, s.encoding, s.options()...)
	if err != nil {
		return nil, shape{}, err
	}
	return f, s, nil
}
