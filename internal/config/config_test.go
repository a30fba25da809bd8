package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/internal/chain"
	"currency-ledger/internal/daemon"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	// Keep a developer's .env out of the tests.
	require.NoError(t, flags.Set("env-file", filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	cfg, err = Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, daemon.DefaultListenAddr, cfg.Node.ListenAddr)
	assert.Equal(t, "default", cfg.Wallet.Name)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ledger.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[node]
listen-addr = "0.0.0.0:9000"

[storage]
postgres-dsn = "postgres://file/ledger"

[wallet]
name = "from-file"
`), 0o600))

	t.Setenv("LEDGER_WALLET_NAME", "from-env")
	t.Setenv("LEDGER_LOG_LEVEL", "debug")

	cfg, err := Load(newFlags(t, "--config", file, "--log-level", "warn"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Node.ListenAddr, "file beats default")
	assert.Equal(t, "postgres://file/ledger", cfg.Storage.PostgresDSN)
	assert.Equal(t, "from-env", cfg.Wallet.Name, "env beats file")
	assert.Equal(t, "warn", cfg.Log.Level, "flag beats env")
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEDGER_WALLET_PATH=/tmp/wallet.db\n"), 0o600))

	// Registers the variable for restore; godotenv only sets unset variables.
	t.Setenv("LEDGER_WALLET_PATH", "")
	require.NoError(t, os.Unsetenv("LEDGER_WALLET_PATH"))

	flags := newFlags(t)
	require.NoError(t, flags.Set("env-file", envFile))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wallet.db", cfg.Wallet.Path)
}

func TestBindClientFlags(t *testing.T) {
	t.Setenv("LEDGER_NODE_URL", "http://env:8888")

	flags := pflag.NewFlagSet("client", pflag.ContinueOnError)
	BindClientFlags(flags)
	require.NoError(t, flags.Set("env-file", ""))
	assert.Nil(t, flags.Lookup("listen-addr"))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8888", cfg.Node.URL)

	require.NoError(t, flags.Parse([]string{"--url", "http://flag:8888"}))
	cfg, err = Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8888", cfg.Node.URL)
	assert.Equal(t, daemon.DefaultListenAddr, cfg.Node.ListenAddr)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.toml")))
	assert.Error(t, err)
}

func TestStore_ReadsBack(t *testing.T) {
	want := Default()
	want.Storage.ClickhouseDSN = "clickhouse://localhost:9000/ledger"
	want.Wallet.Path = "wallet.db"

	var buf bytes.Buffer
	require.NoError(t, Store(&buf, &want))
	assert.Contains(t, buf.String(), "clickhouse-dsn")

	file := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o600))

	got, err := Load(newFlags(t, "--config", file))
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestConfig_Daemon(t *testing.T) {
	cfg := Default()
	cfg.Wallet.Path = "wallet.db"
	cfg.Node.GenesisKey = chain.DevGenesisKey().Public.String()

	dc, err := cfg.Daemon(nil)
	require.NoError(t, err)
	assert.Equal(t, chain.DevGenesisKey().Public, dc.Genesis)
	assert.Equal(t, "wallet.db", dc.Storage.WalletPath)
	assert.Equal(t, daemon.DefaultListenAddr, dc.ListenAddr)

	cfg.Node.GenesisKey = "EOSnotakey"
	_, err = cfg.Daemon(nil)
	assert.Error(t, err)
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)

	cfg.Log.Format = "yaml"
	_, err = cfg.Logger(&buf)
	assert.Error(t, err)
}
