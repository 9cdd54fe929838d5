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

func TestStoreCommands(t *testing.T) {
	dir := filepath.Join(isolate(t), "filters")

	_, err := run(t, "", "store", "create", "-b", "14", "--encoding", "zlib", dir, "urls")
	require.NoError(t, err)
	_, err = run(t, "", "store", "create", "--expected", "1000", dir, "sized")
	require.NoError(t, err)
	_, err = run(t, "", "store", "create", dir, "urls")
	require.ErrorIs(t, err, seenindex.ErrExists)

	_, err = run(t, "https://a.example/\nhttps://b.example/\n", "store", "add", dir, "urls")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "urls.bloom.zz"))
	require.NoError(t, err)

	out, err := run(t, "", "store", "query", dir, "urls", "https://a.example/", "https://c.example/")
	require.NoError(t, err)
	assert.Equal(t, "present\thttps://a.example/\nabsent\thttps://c.example/\n", out)

	out, err = run(t, "https://b.example/\nnever added\n", "store", "query", "--strict", dir, "urls")
	require.ErrorIs(t, err, errAbsent)
	assert.Equal(t, "present\thttps://b.example/\nabsent\tnever added\n", out)

	out, err = run(t, "", "store", "list", dir)
	require.NoError(t, err)
	assert.Regexp(t, `sized\s+2\.0 KiB\s+7\s+0\s+raw\n`, out)
	assert.Regexp(t, `urls\s+2\.0 KiB\s+23\s+2\s+zlib\n`, out)

	_, err = run(t, "", "store", "drop", dir, "sized")
	require.NoError(t, err)
	_, err = run(t, "", "store", "drop", dir, "sized")
	require.ErrorIs(t, err, seenindex.ErrNotFound)
	_, err = run(t, "x\n", "store", "add", dir, "sized")
	require.ErrorIs(t, err, seenindex.ErrNotFound)

	out, err = run(t, "", "store", "list", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "sized")

	// a finished command leaves no log behind.
	_, err = os.Stat(filepath.Join(dir, seenindex.WALDirectory))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreMetricsFlag(t *testing.T) {
	dir := filepath.Join(isolate(t), "filters")
	_, err := run(t, "", "store", "create", "-b", "10", dir, "seen")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(strings.NewReader("a\nb\nc\n"), &stdout, &stderr)
	cmd.SetArgs([]string{"--log-level", "error", "store", "add", "--metrics", dir, "seen"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, stderr.String(), `seenindex_operations_total{op="add",result="ok"} 3`)
	assert.Contains(t, stderr.String(), "seenindex_flushes_total 1")
	assert.Contains(t, stderr.String(), "seenindex_filters 1")
}
