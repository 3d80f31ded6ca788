package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/furrow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the furrow app and returns what it wrote to stdout and stderr.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"furrow"}, args...))
	return stdout.String(), stderr.String(), err
}

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok {
			for _, n := range flag.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	return zero
}

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		alias  string
		envVar string
	}{
		{"log-level", "l", "FURROW_LOG_LEVEL"},
		{"config", "c", "FURROW_CONFIG"},
		{"db", "d", "FURROW_DB"},
		{"backend", "", "FURROW_BACKEND"},
		{"host", "", "FURROW_HOST"},
		{"embedding-model", "", "FURROW_EMBEDDING_MODEL"},
		{"generation-model", "", "FURROW_GENERATION_MODEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := findFlag[*cli.StringFlag](app.Flags, tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, []string{tt.envVar}, flag.EnvVars)
			if tt.alias != "" {
				assert.Contains(t, flag.Aliases, tt.alias)
			}
		})
	}

	t.Run("commands", func(t *testing.T) {
		for _, name := range []string{"ingest", "query", "ask", "remove", "documents", "reindex"} {
			assert.NotNil(t, findCommand(app, name), name)
		}
	})
}

func TestReindexCommandFlags(t *testing.T) {
	cmd := findCommand(newApp(), "reindex")
	require.NotNil(t, cmd)

	t.Run("embedding-model is required", func(t *testing.T) {
		_, _, err := runApp(t, "--db", t.TempDir(), "reindex")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding-model")
	})

	t.Run("embedding-model has no default value", func(t *testing.T) {
		modelFlag := findFlag[*cli.StringFlag](cmd.Flags, "embedding-model")
		require.NotNil(t, modelFlag)
		assert.Empty(t, modelFlag.Value)
		assert.True(t, modelFlag.Required)
		assert.Empty(t, modelFlag.EnvVars)
	})

	t.Run("numeric defaults", func(t *testing.T) {
		for name, want := range map[string]int{"batch-size": 16, "report-interval": 100, "max-retries": 3} {
			flag := findFlag[*cli.IntFlag](cmd.Flags, name)
			require.NotNil(t, flag, name)
			assert.Equal(t, want, flag.Value, name)
		}
		delay := findFlag[*cli.DurationFlag](cmd.Flags, "retry-delay")
		require.NotNil(t, delay)
		assert.Equal(t, time.Second, delay.Value)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, _, err := runApp(t, "--db", t.TempDir(), "reindex", "--embedding-model", "m", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
	})

	t.Run("empty database", func(t *testing.T) {
		_, stderr, err := runApp(t, "--db", t.TempDir(), "reindex", "--embedding-model", "nomic-embed-text")
		require.NoError(t, err)
		assert.Contains(t, stderr, "Embedding model: nomic-embed-text")
		assert.Contains(t, stderr, "No chunks found")
	})
}

func TestDocumentsCommand(t *testing.T) {
	t.Run("empty database", func(t *testing.T) {
		stdout, _, err := runApp(t, "--db", t.TempDir(), "documents")
		require.NoError(t, err)
		assert.Equal(t, "No documents.\n", stdout)
	})

	t.Run("database path from config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "furrow.yaml")
		yaml := "storage:\n  path: " + filepath.Join(dir, "db") + "\n"
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

		_, _, err := runApp(t, "-c", path, "documents")
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(dir, "db"))
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := runApp(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "documents")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := runApp(t, "--db", t.TempDir(), "--backend", "bogus", "documents")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "bogus")
	})
}

func TestCommandArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ingest without files", []string{"ingest"}, "at least one file"},
		{"query without text", []string{"query"}, "query text is required"},
		{"ask without text", []string{"ask", "  "}, "question is required"},
		{"remove without id", []string{"remove"}, "document id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, append([]string{"--db", t.TempDir()}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIngestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "guide.pdf")
	_, _, err := runApp(t, "--db", t.TempDir(), "ingest", missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveUnknownDocument(t *testing.T) {
	_, _, err := runApp(t, "--db", t.TempDir(), "remove", "no-such-id")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test", "-l", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		_, _, err := runApp(t, "--log-level", "verbose", "documents")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log level "verbose"`)
	})

	t.Run("level from environment", func(t *testing.T) {
		t.Setenv("FURROW_LOG_LEVEL", "nope")
		_, _, err := runApp(t, "documents")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
