package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dispatch"
)

// MaxMatches caps the paths returned by find_files.
const MaxMatches = 200

var errEnoughMatches = errors.New("enough matches")

type findFilesArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

type findFilesResult struct {
	Matches   []string `json:"matches"`
	Truncated bool     `json:"truncated,omitempty"`
}

// FindFiles returns the find_files tool, which globs files below root. Paths
// are slash-separated and relative to root; nothing outside root is
// reachable. It is not published to guests.
func FindFiles(root string) relay.ToolDefinition {
	return relay.ToolDefinition{
		Tool: relay.Tool{
			Name:        "find_files",
			Description: "Find files in the workspace matching a glob pattern. Supports ** for recursive matching.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {
						"type": "string",
						"description": "Glob pattern to match files (e.g. **/*.md)"
					},
					"path": {
						"type": "string",
						"description": "Workspace subdirectory to search from; defaults to the workspace root"
					}
				},
				"required": ["pattern"]
			}`),
		},
		Handler: dispatch.Typed(func(_ context.Context, a findFilesArgs) (findFilesResult, error) {
			return findFiles(os.DirFS(root), a)
		}),
	}
}

func findFiles(fsys iofs.FS, a findFilesArgs) (findFilesResult, error) {
	if a.Pattern == "" {
		return findFilesResult{}, errors.New("pattern is required")
	}
	if !doublestar.ValidatePattern(a.Pattern) {
		return findFilesResult{}, fmt.Errorf("invalid glob pattern: %s", a.Pattern)
	}

	dir := "."
	if a.Path != "" {
		dir = path.Clean(a.Path)
	}
	if !iofs.ValidPath(dir) {
		return findFilesResult{}, fmt.Errorf("path %q is outside the workspace", a.Path)
	}
	info, err := iofs.Stat(fsys, dir)
	if err != nil {
		return findFilesResult{}, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return findFilesResult{}, errors.New("path must be a directory")
	}
	sub, err := iofs.Sub(fsys, dir)
	if err != nil {
		return findFilesResult{}, err
	}

	res := findFilesResult{Matches: []string{}}
	err = doublestar.GlobWalk(sub, a.Pattern, func(p string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if len(res.Matches) == MaxMatches {
			res.Truncated = true
			return errEnoughMatches
		}
		res.Matches = append(res.Matches, path.Join(dir, p))
		return nil
	})
	if err != nil && !errors.Is(err, errEnoughMatches) {
		return findFilesResult{}, fmt.Errorf("error matching pattern: %w", err)
	}
	return res, nil
}
