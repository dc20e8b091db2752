package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/store"
)

// inTempDir runs the test from an empty directory so no stray dobby.yaml or
// .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(Options{})

	require.NoError(t, err)
	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, store.DriverMattn, cfg.Driver)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: ':memory:'\ndriver: sqlite\nlog:\n  format: json\n"), 0o644))

	cfg, err := Load(Options{File: path})

	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Name)
	assert.Equal(t, store.DriverModernc, cfg.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DiscoversDobbyYAML(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dobby.yaml"), []byte("bound_reads: true\n"), 0o644))

	cfg, err := Load(Options{})

	require.NoError(t, err)
	assert.True(t, cfg.BoundReads)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	inTempDir(t)

	_, err := Load(Options{File: "nope.yaml"})

	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dobby.yaml"), []byte("name: file.sqlite\n"), 0o644))
	t.Setenv("DOBBY_NAME", "env.sqlite")
	t.Setenv("DOBBY_LOG_LEVEL", "warn")

	cfg, err := Load(Options{})

	require.NoError(t, err)
	assert.Equal(t, "env.sqlite", cfg.Name)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOBBY_DEBUG=true\n"), 0o644))
	// godotenv sets the variable for the process; restore it afterwards.
	t.Setenv("DOBBY_DEBUG", "")
	require.NoError(t, os.Unsetenv("DOBBY_DEBUG"))

	cfg, err := Load(Options{EnvFiles: []string{".env", ".env.missing"}})

	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoad_FlagsWin(t *testing.T) {
	inTempDir(t)
	t.Setenv("DOBBY_NAME", "env.sqlite")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("name", "", "")
	fs.Bool("bound-reads", false, "")
	fs.String("log-level", "info", "")
	fs.Int("unrelated", 0, "")
	require.NoError(t, fs.Parse([]string{"--name", "flag.sqlite", "--bound-reads"}))

	cfg, err := Load(Options{Flags: fs})

	require.NoError(t, err)
	assert.Equal(t, "flag.sqlite", cfg.Name)
	assert.True(t, cfg.BoundReads)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := Config{Driver: store.DriverMattn, Log: LogConfig{Level: "info", Format: "text"}}
	require.NoError(t, base.Validate())

	bad := base
	bad.Driver = "postgres"
	assert.ErrorContains(t, bad.Validate(), "unknown driver")

	bad = base
	bad.Log.Format = "xml"
	assert.ErrorContains(t, bad.Validate(), "log format")

	bad = base
	bad.Log.Level = "loud"
	assert.ErrorContains(t, bad.Validate(), "log level")
}

func TestLevel_DebugLowers(t *testing.T) {
	cfg := Config{Debug: true, Log: LogConfig{Level: "warn"}}

	lvl, err := cfg.Level()

	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestBridge(t *testing.T) {
	dir := inTempDir(t)
	cfg := Config{Name: ":memory:", Driver: store.DriverModernc, Debug: true}

	bc, err := cfg.Bridge()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", bc.Name)
	assert.Equal(t, store.DriverModernc, bc.Driver)
	assert.Nil(t, bc.Schema)

	path := filepath.Join(dir, "s.cue")
	require.NoError(t, os.WriteFile(path, []byte(`tables: notes: columns: [{name: "id", primary_key: true}]`), 0o644))
	cfg.Schema = path
	bc, err = cfg.Bridge()
	require.NoError(t, err)
	require.NotNil(t, bc.Schema)
	_, ok := bc.Schema.Table("notes")
	assert.True(t, ok)

	cfg.Schema = filepath.Join(dir, "missing.cue")
	_, err = cfg.Bridge()
	assert.Error(t, err)
}
