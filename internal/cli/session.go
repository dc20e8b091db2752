package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/bridge"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/config"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/ident"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/query"
)

// newLogger builds the process logger from the log settings. Verbose lowers
// the level to debug.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// session is one command's execution context.
type session struct {
	shared   *bridge.Shared
	registry *prometheus.Registry
	out      *OutputFormatter
	cfg      *config.Config
}

func newSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, NewExitError(ExitCommandError, "configuration not loaded")
	}
	bc, err := cfg.Bridge()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	reg := prometheus.NewRegistry()
	return &session{
		shared:   bridge.NewShared(bc, bridge.WithMetrics(bridge.NewMetrics(reg))),
		registry: reg,
		cfg:      cfg,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// builder opens the shared connection and returns a builder on it.
func (s *session) builder(ctx context.Context) (*query.Builder, error) {
	opts := []query.Option{query.WithIDGenerator(ident.NewTimeSeededV4())}
	if s.cfg.BoundReads {
		opts = append(opts, query.WithBoundReads())
	}
	b, err := query.Open(ctx, s.shared, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize execution service", err)
	}
	return b, nil
}

// close shuts the service down, then reports request metrics in verbose mode.
func (s *session) close() {
	if err := s.shared.Close(); err != nil {
		slog.Debug("close execution service", "error", err)
	}
	s.reportMetrics()
}

func (s *session) reportMetrics() {
	if !s.out.Verbose {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		slog.Warn("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			s.out.VerboseLog("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), c.GetValue())
		}
	}
}

// failure converts a terminal operation error into output and an exit code.
func (s *session) failure(err error) error {
	switch {
	case query.IsUsageError(err):
		_ = s.out.Error(CodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid query", err)
	case bridge.IsChannelError(err):
		_ = s.out.Error(CodeChannel, err.Error(), nil)
		return WrapExitError(ExitCommandError, "execution service unavailable", err)
	default:
		_ = s.out.Error(CodeService, err.Error(), nil)
		return WrapExitError(ExitCommandError, "query failed", err)
	}
}

// rejected reports a statement the service refused.
func (s *session) rejected(message string) error {
	_ = s.out.Error(CodeService, message, nil)
	return NewExitError(ExitFailure, message)
}
