package builtin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/builtin"
	"github.com/fwojciec/relay/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	return root
}

type findResult struct {
	Matches   []string `json:"matches"`
	Truncated bool     `json:"truncated"`
}

func find(t *testing.T, d *dispatch.Dispatcher, args string) (findResult, error) {
	t.Helper()
	out, err := d.Execute(context.Background(), "find_files", json.RawMessage(args))
	if err != nil {
		return findResult{}, err
	}
	var res findResult
	require.NoError(t, json.Unmarshal(out, &res))
	return res, nil
}

func TestFindFiles(t *testing.T) {
	t.Parallel()
	root := writeTree(t, "README.md", "docs/guide.md", "docs/api/ref.md", "src/main.go")
	d := dispatch.New([]relay.ToolDefinition{builtin.FindFiles(root)})

	t.Run("recursive", func(t *testing.T) {
		t.Parallel()
		res, err := find(t, d, `{"pattern":"**/*.md"}`)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"README.md", "docs/guide.md", "docs/api/ref.md"}, res.Matches)
		assert.False(t, res.Truncated)
	})

	t.Run("subdirectory", func(t *testing.T) {
		t.Parallel()
		res, err := find(t, d, `{"pattern":"*.md","path":"docs"}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"docs/guide.md"}, res.Matches)
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()
		res, err := find(t, d, `{"pattern":"**/*.rs"}`)
		require.NoError(t, err)
		assert.Empty(t, res.Matches)
	})

	errs := []struct {
		name string
		args string
	}{
		{"missing pattern", `{}`},
		{"invalid pattern", `{"pattern":"[a-"}`},
		{"escape", `{"pattern":"*","path":"../"}`},
		{"absolute", `{"pattern":"*","path":"/etc"}`},
		{"missing dir", `{"pattern":"*","path":"nope"}`},
		{"file as dir", `{"pattern":"*","path":"README.md"}`},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := find(t, d, tt.args)
			require.ErrorIs(t, err, relay.ErrToolExecution)
		})
	}
}

func TestFindFiles_Truncated(t *testing.T) {
	t.Parallel()
	var files []string
	for i := range builtin.MaxMatches + 5 {
		files = append(files, fmt.Sprintf("f%03d.txt", i))
	}
	d := dispatch.New([]relay.ToolDefinition{builtin.FindFiles(writeTree(t, files...))})

	res, err := find(t, d, `{"pattern":"*.txt"}`)
	require.NoError(t, err)
	assert.Len(t, res.Matches, builtin.MaxMatches)
	assert.True(t, res.Truncated)
}
