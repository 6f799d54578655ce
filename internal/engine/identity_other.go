//go:build !unix

package engine

import "path/filepath"

type dirID struct {
	path string
}

func identify(path string) (dirID, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return dirID{}, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return dirID{}, err
	}
	return dirID{path: abs}, nil
}
