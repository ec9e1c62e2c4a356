package filter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
	"go.uber.org/zap"
)

// FilterResults counts the outcome of a directory scan
type FilterResults struct {
	Total  int `json:"total"`
	Spam   int `json:"spam"`
	Ham    int `json:"ham"`
	Errors int `json:"errors"`
}

// FileVerdict is the verdict for one file of a directory scan
type FileVerdict struct {
	Path    string
	Verdict *findings.Verdict
	Err     error
}

// DirOptions controls a directory scan
type DirOptions struct {
	// Moved here when clean, left in place when empty
	OutputPath string
	// Moved here when spam, left in place when empty
	SpamPath string
	// Number of files scanned at once
	MaxConcurrent int
	// Called once per file, from the worker that scanned it
	OnVerdict func(FileVerdict)
}

// ScanDir scans every message file below inputPath with a worker pool
func (s *Scanner) ScanDir(ctx context.Context, inputPath string, opts DirOptions) (*FilterResults, error) {
	for _, dir := range []string{opts.OutputPath, opts.SpamPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var files []string
	err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsEmailFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &FilterResults{}, nil
	}

	workers := opts.MaxConcurrent
	if workers <= 0 {
		workers = 4
	}

	var total, spam, ham, failed int32
	jobs := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < min(workers, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				v, err := s.Scan(ctx, email.Path(path))
				atomic.AddInt32(&total, 1)

				switch {
				case err != nil:
					atomic.AddInt32(&failed, 1)
					s.logger.Warn("failed to scan file", zap.String("path", path), zap.Error(err))
				case v.IsSpam:
					atomic.AddInt32(&spam, 1)
					s.moveTo(path, opts.SpamPath)
				default:
					atomic.AddInt32(&ham, 1)
					s.moveTo(path, opts.OutputPath)
				}

				if opts.OnVerdict != nil {
					opts.OnVerdict(FileVerdict{Path: path, Verdict: v, Err: err})
				}
			}
		}()
	}

feed:
	for _, path := range files {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return &FilterResults{
		Total:  int(atomic.LoadInt32(&total)),
		Spam:   int(atomic.LoadInt32(&spam)),
		Ham:    int(atomic.LoadInt32(&ham)),
		Errors: int(atomic.LoadInt32(&failed)),
	}, ctx.Err()
}

// moveTo moves path into dir. A name already taken there gets a numeric
// suffix, so files with the same name from different subdirectories all
// survive.
func (s *Scanner) moveTo(path, dir string) {
	if dir == "" {
		return
	}
	s.moveMu.Lock()
	defer s.moveMu.Unlock()

	dest := freeName(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		s.logger.Warn("failed to move file", zap.String("path", path), zap.String("dest", dest), zap.Error(err))
	}
}

// freeName returns dir/name, or dir/stem-N.ext for the first N not in use
func freeName(dir, name string) string {
	dest := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
			return dest
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}

// IsEmailFile reports whether path has a message file extension
func IsEmailFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml", ".msg", ".txt", ".email", "":
		return true
	}
	return false
}
