package secrets

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/agent-deployer/descriptor"
	"github.com/illmade-knight/agent-deployer/gcloudcmd"
)

// exportName is the shell identifier grammar. Values are quoted on the way
// out, but the name lands on the export line verbatim, so anything outside
// this pattern is refused rather than emitted.
var exportName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fetcher pulls a descriptor's secret references out of the store as shell
// export lines.
type Fetcher struct {
	store  Store
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher. The logger must write somewhere other than
// out: out carries nothing but export lines so it can be piped into eval.
func NewFetcher(store Store, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		store:  store,
		logger: logger.With().Str("component", "SecretFetcher").Logger(),
	}
}

// Fetch visits the descriptor's secret references, in declared order, and
// writes one export assignment per resolved secret to out. Literal, reserved
// and inert bindings are never emitted. A failed fetch is counted and the
// remaining references still run.
func (f *Fetcher) Fetch(ctx context.Context, d *descriptor.Descriptor, out io.Writer) Summary {
	var summary Summary

	for _, b := range d.EnvVars {
		if b.Classify() != descriptor.KindSecretRef {
			summary.Skipped++
			continue
		}
		if !exportName.MatchString(b.Name) {
			f.logger.Warn().Str("name", b.Name).Msg("Binding name is not a valid shell identifier, skipping.")
			summary.Skipped++
			continue
		}
		version := b.SecretVersion()

		f.logger.Info().Str("name", b.Name).Str("secret", b.Secret).Str("version", version).Msg("Fetching secret...")
		data, err := f.store.Access(ctx, b.Secret, version)
		if err != nil {
			f.logger.Warn().Err(err).Str("secret", b.Secret).Msg("Failed to fetch secret. Continuing with remaining references.")
			summary.Errors++
			continue
		}

		if _, err := fmt.Fprintf(out, "export %s=%s\n", b.Name, gcloudcmd.Quote(string(data))); err != nil {
			f.logger.Warn().Err(err).Str("name", b.Name).Msg("Failed to write export line.")
			summary.Errors++
			continue
		}
		summary.Processed++
	}

	f.logger.Info().Int("processed", summary.Processed).Int("skipped", summary.Skipped).Int("errors", summary.Errors).Msg("Secret fetch complete.")
	return summary
}
