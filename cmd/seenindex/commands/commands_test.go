package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danish45007/seenindex"
)

// isolate keeps config discovery away from the developer's own files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCreateAndQuery(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "seen.bloom")

	_, err := run(t, "https://a.example/\nhttps://b.example/\nhttps://c.example/\n", "create", "-b", "16", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<13), info.Size())

	out, err := run(t, "", "query", path, "https://b.example/", "https://d.example/")
	require.NoError(t, err)
	assert.Equal(t, "present\thttps://b.example/\nabsent\thttps://d.example/\n", out)
}

func TestCreateStripsOnlyNewline(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "seen.bloom.gz")

	_, err := run(t, "alpha\r\nbeta\ngamma", "create", "-b", "14", path)
	require.NoError(t, err)

	out, err := run(t, "", "query", path, "alpha\r", "beta", "gamma", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "present\talpha\r\npresent\tbeta\npresent\tgamma\nabsent\talpha\n", out)

	// the bits must match a filter built from the exact bytes before the '\n'.
	filter, err := seenindex.ReadFile(path, 14, seenindex.EncodingGzip)
	require.NoError(t, err)
	want, err := seenindex.New(14)
	require.NoError(t, err)
	for _, s := range []string{"alpha\r", "beta", "gamma"} {
		want.AddString(s)
	}
	assert.True(t, want.Equal(filter))
}

func TestCreateFromInputFile(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("one\ntwo\n"), 0o644))
	path := filepath.Join(dir, "seen.bloom.zz")

	_, err := run(t, "", "create", "-b", "12", "-i", input, path)
	require.NoError(t, err)

	manifest, err := seenindex.ReadManifestFile(path + seenindex.ManifestSuffix)
	require.NoError(t, err)
	assert.Equal(t, 12, manifest.Exponent)
	assert.Equal(t, uint32(seenindex.DefaultRounds), manifest.Rounds)
	assert.Equal(t, seenindex.EncodingZlib, manifest.Encoding)
	assert.Equal(t, uint64(2), manifest.Inserted)

	_, err = run(t, "", "create", "-i", filepath.Join(dir, "missing.txt"), filepath.Join(dir, "other.bloom"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateRejectsBadSize(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "seen.bloom")

	for _, bits := range []string{"0", "2", "32"} {
		_, err := run(t, "a\n", "create", "--bloom-bits", bits, path)
		require.ErrorIs(t, err, seenindex.ErrInvalidSize, "bloom bits %s", bits)
	}
	_, err := run(t, "a\n", "create", "-b", "10", "-k", "0", path)
	require.ErrorIs(t, err, seenindex.ErrInvalidRounds)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed create must not write anything")
}

func TestCreateSizedForExpectedCount(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sized.bloom")

	// 1000 strings at 1% need 9,586 bits, rounded up to 2^14.
	_, err := run(t, "a\nb\n", "create", "--expected", "1000", "--fp-rate", "0.01", path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<11), info.Size())
	manifest, err := seenindex.ReadManifestFile(path + seenindex.ManifestSuffix)
	require.NoError(t, err)
	assert.Equal(t, 14, manifest.Exponent)
	assert.Equal(t, uint32(7), manifest.Rounds)

	// explicit rounds win over the suggestion.
	_, err = run(t, "a\n", "create", "--expected", "1000", "-k", "3", path)
	require.NoError(t, err)
	manifest, err = seenindex.ReadManifestFile(path + seenindex.ManifestSuffix)
	require.NoError(t, err)
	assert.Equal(t, 14, manifest.Exponent)
	assert.Equal(t, uint32(3), manifest.Rounds)

	_, err = run(t, "a\n", "create", "--expected", "1000", "--fp-rate", "1.5", path)
	require.ErrorIs(t, err, seenindex.ErrInvalidSize)
	_, err = run(t, "a\n", "create", "--fp-rate", "0.1", path)
	require.Error(t, err)
}

func TestQueryWithoutManifest(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bare.bloom")

	_, err := run(t, "kept\n", "create", "-b", "12", "--manifest=false", path)
	require.NoError(t, err)
	_, err = os.Stat(path + seenindex.ManifestSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)

	out, err := run(t, "", "query", path, "kept")
	require.NoError(t, err)
	assert.Equal(t, "present\tkept\n", out)
}

func TestQueryStdinStrict(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "seen.bloom")
	_, err := run(t, "x\ny\n", "create", "-b", "14", path)
	require.NoError(t, err)

	out, err := run(t, "x\ny\n", "query", "--strict", path)
	require.NoError(t, err)
	assert.Equal(t, "present\tx\npresent\ty\n", out)

	out, err = run(t, "x\nnever added\n", "query", "--strict", path)
	require.ErrorIs(t, err, errAbsent)
	assert.Equal(t, "present\tx\nabsent\tnever added\n", out)
}

func TestCanonicalize(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "seen.bloom")

	_, err := run(t, "https://www.example.com/page/?utm_source=feed\n", "create", "-b", "14", "--canonicalize", path)
	require.NoError(t, err)

	out, err := run(t, "", "query", "--canonicalize", path, "http://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "present\t//example.com/page\n", out)
}

func TestMergeAndInspect(t *testing.T) {
	dir := isolate(t)
	first := filepath.Join(dir, "first.bloom.gz")
	second := filepath.Join(dir, "second.bloom.gz")
	merged := filepath.Join(dir, "merged.bloom.gz")

	_, err := run(t, "a\nb\n", "create", "-b", "14", first)
	require.NoError(t, err)
	_, err = run(t, "c\nd\n", "create", "-b", "14", second)
	require.NoError(t, err)

	_, err = run(t, "", "merge", merged, first, second)
	require.NoError(t, err)

	out, err := run(t, "", "query", merged, "a", "d")
	require.NoError(t, err)
	assert.Equal(t, "present\ta\npresent\td\n", out)

	out, err = run(t, "", "inspect", merged)
	require.NoError(t, err)
	assert.Regexp(t, `exponent\s+14\n`, out)
	assert.Regexp(t, `encoding\s+gzip\n`, out)
	assert.Regexp(t, `size\s+2\.0 KiB\n`, out)
	assert.Regexp(t, `bits\s+16,384\n`, out)
	assert.Regexp(t, `rounds\s+23\n`, out)
	assert.Regexp(t, `inserted\s+4\n`, out)

	small := filepath.Join(dir, "small.bloom.gz")
	_, err = run(t, "e\n", "create", "-b", "12", small)
	require.NoError(t, err)
	_, err = run(t, "", "merge", filepath.Join(dir, "bad.bloom.gz"), first, small)
	require.ErrorIs(t, err, seenindex.ErrSizeMismatch)
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "seenindex dev\n", out)
}
