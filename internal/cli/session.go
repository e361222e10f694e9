package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/modi-labs/modi/internal/config"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/prompt"
	"github.com/modi-labs/modi/internal/scaffold"
	"github.com/modi-labs/modi/internal/session"
)

// loadSession opens the config (bootstrapping it on first use), builds the
// logger and returns the session every command works with.
func loadSession(cmd *cobra.Command) (context.Context, *session.Session, error) {
	path := flagConfig
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}

	store, err := config.Open(path)
	if err != nil {
		return nil, nil, err
	}

	levelName := store.LogLevel()
	if flagLogLevel != "" {
		levelName = flagLogLevel
	}
	level, ok := logger.ParseLogLevel(levelName)

	ctx := logger.ToContext(cmd.Context(), logger.New(level, cmd.ErrOrStderr()))
	if !ok {
		logger.Warnf(ctx, "unknown log level %q, using info", levelName)
	}

	term := &prompt.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), AssumeYes: flagYes}

	sess, err := session.New(store,
		session.WithConfirmer(term),
		session.WithOutput(cmd.OutOrStdout()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("starting session: %w", err)
	}

	if store.Bootstrapped() {
		logger.Infof(ctx, "created %s with cache %s", store.Path(), store.CachePath())
		if _, err := scaffold.WriteEntryScript(sess.EntryScript, scaffold.NewEntryData(store.CachePath())); err != nil {
			logger.Warnf(ctx, "writing entry script: %v", err)
		}
	}

	if level == zapcore.DebugLevel {
		sess.Python.Stdout = cmd.ErrOrStderr()
		sess.Python.Stderr = cmd.ErrOrStderr()
	}

	return ctx, sess, nil
}

// selector returns an interactive archive picker when stdin is a terminal.
func selector(sess *session.Session) func([]string) (string, error) {
	t, ok := sess.Confirm.(*prompt.Terminal)
	if !ok || !t.Interactive() {
		return nil
	}
	return func(candidates []string) (string, error) {
		return t.Choose("Several archives match:", candidates)
	}
}
