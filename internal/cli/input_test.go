package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQueries(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "one per line",
			in:   "SELECT 1\n\n  SELECT 2  \n",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "semicolons span lines",
			in:   "SELECT a\n  FROM t;\nSELECT b FROM u;",
			want: []string{"SELECT a\n  FROM t", "SELECT b FROM u"},
		},
		{
			name: "comments dropped",
			in:   "-- header\nSELECT 1\n  -- indented\nSELECT 2",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "empty",
			in:   "-- nothing here\n\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readQueries(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectQueries(t *testing.T) {
	got, err := collectQueries([]string{"SELECT 0"}, "testdata/queries.sql", nil)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "SELECT 0", got[0])
	assert.Equal(t, "SELECT d.dname\n  FROM department d", got[2])

	got, err = collectQueries(nil, "-", strings.NewReader("SELECT 9"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 9"}, got)

	_, err = collectQueries(nil, "", nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = collectQueries(nil, "testdata/missing.sql", nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
