package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ListDirectory returns every regular, non-hidden file below root in lexical order.
// DICOMDIR and other non-image files are listed; the parser decides what to keep.
func ListDirectory(ctx context.Context, root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, classifyFSError(err)
	}
	if !info.IsDir() {
		return nil, classifyFSError(fs.ErrNotExist)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return classifyFSError(err)
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		files = append(files, OSFile(name, path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
