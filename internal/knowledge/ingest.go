package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IngestDir walks dir and (re)indexes every .txt and .md file found.
// Each file's existing chunks are dropped first, so ingestion is
// idempotent: running it twice over the same tree leaves the same rows.
//
// Returns the number of chunks written.
func (s *Store) IngestDir(ctx context.Context, dir string) (int, error) {
	root := os.DirFS(dir)

	total := 0
	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			s.logger.Debug("skipping unsupported file", "source", path)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := s.ingestFile(ctx, root, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walking %s: %w", dir, err)
	}

	s.logger.Info("knowledge base ingested", "dir", dir, "chunks", total)
	return total, nil
}

func (s *Store) ingestFile(ctx context.Context, root fs.FS, path string) (int, error) {
	data, err := fs.ReadFile(root, path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	chunks := SplitText(string(data), DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		s.logger.Debug("skipping empty file", "source", path)
		return 0, nil
	}

	// Drop stale chunks so a shrinking file does not leave orphans with
	// higher indexes behind.
	if err := s.queries.DeleteChunksBySource(ctx, path); err != nil {
		return 0, fmt.Errorf("clearing existing chunks: %w", err)
	}

	for i, chunk := range chunks {
		if err := s.Add(ctx, path, i, chunk); err != nil {
			return i, err
		}
	}

	s.logger.Debug("ingested file", "source", path, "chunks", len(chunks))
	return len(chunks), nil
}
