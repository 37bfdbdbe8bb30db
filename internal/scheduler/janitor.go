package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StaleWorkdirJanitor returns a task function that removes orphaned
// vidfetch working directories left in the system temp dir by crashed
// requests. Directories younger than maxAge are left alone; they may
// belong to an in-flight download.
func StaleWorkdirJanitor(maxAge time.Duration) TaskFunc {
	return func(ctx context.Context) error {
		entries, err := os.ReadDir(os.TempDir())
		if err != nil {
			return err
		}

		cutoff := time.Now().Add(-maxAge)
		for _, e := range entries {
			if !e.IsDir() || !strings.HasPrefix(e.Name(), "vidfetch-") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			os.RemoveAll(filepath.Join(os.TempDir(), e.Name()))
		}
		return nil
	}
}
