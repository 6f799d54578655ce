package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// walker enumerates the regular files under a root. Directory symlinks are
// followed; every directory is entered at most once, so link cycles end.
type walker struct {
	exclude func(string) bool
	visited map[dirID]struct{}
	files   []string
}

// collectFiles lists the regular files under root in a deterministic order:
// within each directory, files in name order first, then subdirectories in
// name order. It stops early, returning what it has, when ctx is done.
func collectFiles(ctx context.Context, root string, exclude func(string) bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			return []string{root}, nil
		}
		return nil, nil
	}

	w := &walker{exclude: exclude, visited: make(map[dirID]struct{})}
	w.walkDir(ctx, root)
	return w.files, nil
}

func (w *walker) excluded(path string) bool {
	return w.exclude != nil && w.exclude(path)
}

func (w *walker) walkDir(ctx context.Context, dir string) {
	if ctx.Err() != nil {
		return
	}

	id, err := identify(dir)
	if err != nil {
		log.Debug().Err(err).Str("path", dir).Msg("skipping directory")
		return
	}
	if _, seen := w.visited[id]; seen {
		log.Debug().Str("path", dir).Msg("directory already visited, skipping")
		return
	}
	w.visited[id] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug().Err(err).Str("path", dir).Msg("cannot read directory")
		return
	}

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if w.excluded(path) {
			continue
		}

		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			// Classify by the link target.
			target, err := os.Stat(path)
			if err != nil {
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			subdirs = append(subdirs, path)
		case mode.IsRegular():
			w.files = append(w.files, path)
		}
	}

	for _, sub := range subdirs {
		if ctx.Err() != nil {
			return
		}
		w.walkDir(ctx, sub)
	}
}
