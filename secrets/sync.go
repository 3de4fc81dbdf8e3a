package secrets

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// maxSecretIDLength is the Secret Manager identifier limit.
const maxSecretIDLength = 255

// maxLineSize bounds one env-file line. Secret Manager accepts payloads up
// to 64KiB, so a single line can exceed bufio's default token limit.
const maxLineSize = 1 << 20

// SecretID derives a secret store identifier from an environment key:
// lowercase, '_' and '.' become '-', anything outside [a-z0-9-] is stripped,
// and the result is capped at the store's length limit. An empty result
// means the key cannot name a secret.
func SecretID(key string) string {
	s := strings.ToLower(key)
	s = strings.NewReplacer("_", "-", ".", "-").Replace(s)

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > maxSecretIDLength {
		id = id[:maxSecretIDLength]
	}
	return id
}

// Summary counts the per-item outcomes of a sync or fetch pass. The process
// as a whole fails iff Errors is nonzero.
type Summary struct {
	Processed int
	Skipped   int
	Errors    int
}

// Failed reports whether the pass should end with a nonzero exit status.
func (s Summary) Failed() bool {
	return s.Errors > 0
}

// Syncer pushes local KEY=VALUE pairs into the secret store.
type Syncer struct {
	store  Store
	logger zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(store Store, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		logger: logger.With().Str("component", "SecretSyncer").Logger(),
	}
}

// SyncFile syncs an env file from disk. A missing file is a fatal error, not
// a per-item one: there is nothing safe to do partially.
func (s *Syncer) SyncFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return s.Sync(ctx, f), nil
}

// Sync reads newline-delimited KEY=VALUE pairs and pushes each one into the
// store, creating the secret on first sight and always adding a fresh
// version. Malformed lines are warned about and skipped; store failures are
// counted and the remaining lines still run.
func (s *Syncer) Sync(ctx context.Context, r io.Reader) Summary {
	var summary Summary

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		// The key is trimmed below; the value is stored exactly as written.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			s.logger.Warn().Int("line", lineNo).Msg("Line has no '=' separator, skipping.")
			summary.Skipped++
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			s.logger.Warn().Int("line", lineNo).Msg("Line has an empty key, skipping.")
			summary.Skipped++
			continue
		}

		secretID := SecretID(key)
		if secretID == "" {
			s.logger.Warn().Int("line", lineNo).Str("key", key).Msg("Key yields an empty secret identifier, skipping.")
			summary.Skipped++
			continue
		}

		if err := s.push(ctx, secretID, value); err != nil {
			s.logger.Warn().Err(err).Str("secret_id", secretID).Msg("Failed to sync secret. Continuing with remaining lines.")
			summary.Errors++
			continue
		}
		summary.Processed++
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed reading env file.")
		summary.Errors++
	}

	s.logger.Info().Int("processed", summary.Processed).Int("skipped", summary.Skipped).Int("errors", summary.Errors).Msg("Secret sync complete.")
	return summary
}

func (s *Syncer) push(ctx context.Context, secretID, value string) error {
	exists, err := s.store.Exists(ctx, secretID)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info().Str("secret_id", secretID).Msg("Secret does not exist, creating...")
		if err := s.store.Create(ctx, secretID); err != nil {
			return err
		}
	}

	// A new version is always added, even when the secret already existed and
	// even when the value is empty.
	if err := s.store.AddVersion(ctx, secretID, []byte(value)); err != nil {
		return err
	}
	s.logger.Info().Str("secret_id", secretID).Msg("Secret version added.")
	return nil
}
