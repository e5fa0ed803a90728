// Package storage archives each Run's final summary to disk. This is
// intentionally write-only: no state crosses Run boundaries (spec §3), so
// nothing here is ever loaded back in at Run start. It exists purely as an
// operational record, reusing the teacher's atomic-write idiom
// (tmp file + fsync + rename) for a genuinely new purpose.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
)

// ArchiveRun writes summary to <dir>/<run_id>.json using the atomic
// write pattern: write to a temp file, fsync, then rename into place so a
// crash mid-write never leaves a half-written archive file behind.
func ArchiveRun(dir string, summary models.RunSummary, log zerolog.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating archive dir %q: %w", dir, err)
	}

	dest := filepath.Join(dir, summary.RunID+".json")
	tmp := dest + ".tmp"

	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp archive file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp archive file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp archive file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp archive file: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename archive file into place: %w", err)
	}

	log.Info().Str("path", dest).Msg("run summary archived")
	return nil
}
