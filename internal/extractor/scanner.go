package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScannedFile represents an HTML page found during a content directory scan.
type ScannedFile struct {
	RelPath string // Relative path from the content root (e.g., "compounds/limonene.html")
	URL     string // Site-relative URL derived from RelPath (e.g., "/compounds/limonene.html")
	AbsPath string // Absolute file path
}

// ScanContentDir walks the content root and returns every HTML page found.
// Hidden directories (dotfiles) are skipped.
func ScanContentDir(ctx context.Context, root string) ([]ScannedFile, error) {
	var scanned []ScannedFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".html" && ext != ".htm" {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		scanned = append(scanned, ScannedFile{
			RelPath: relPath,
			URL:     "/" + relPath,
			AbsPath: path,
		})
		return nil
	})
	if err != nil {
		return scanned, fmt.Errorf("failed to scan content directory %s: %w", root, err)
	}

	return scanned, nil
}
