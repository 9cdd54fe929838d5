package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, canonicalize bool) []string {
	t.Helper()
	var lines []string
	n, err := forEachLine(context.Background(), strings.NewReader(input), canonicalize, func(line []byte) {
		lines = append(lines, string(line))
	})
	require.NoError(t, err)
	require.Equal(t, len(lines), n)
	return lines
}

func TestForEachLine(t *testing.T) {
	assert.Nil(t, collect(t, "", false))
	assert.Equal(t, []string{"a", "b"}, collect(t, "a\nb\n", false))
	assert.Equal(t, []string{"a\r", "b"}, collect(t, "a\r\nb", false), "a carriage return is part of the line")
	assert.Equal(t, []string{"", "x"}, collect(t, "\nx\n", false), "empty lines are kept")
	assert.Equal(t, []string{"a\r\r\r"}, collect(t, "a\r\r\r\n", false))
	assert.Equal(t, []string{"a", ""}, collect(t, "a\n\n", false))
	assert.Equal(t, []string{"//example.com/x"}, collect(t, "https://www.example.com/x/\n", true))
}

func TestForEachLineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := forEachLine(ctx, strings.NewReader("a\n"), false, func([]byte) {})
	require.ErrorIs(t, err, context.Canceled)
}
