// Package config loads node and client settings from flags, LEDGER_*
// environment variables, an optional .env file and an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"currency-ledger/internal/daemon"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. LEDGER_NODE_LISTEN_ADDR.
const EnvPrefix = "LEDGER"

// Config is the complete configuration.
type Config struct {
	Node    Node    `toml:"node" mapstructure:"node"`
	Storage Storage `toml:"storage" mapstructure:"storage"`
	Wallet  Wallet  `toml:"wallet" mapstructure:"wallet"`
	Log     Log     `toml:"log" mapstructure:"log"`
}

// Node configures the API endpoint and genesis.
type Node struct {
	ListenAddr string `toml:"listen-addr" mapstructure:"listen-addr" comment:"API listen address"`
	URL        string `toml:"url" mapstructure:"url" comment:"API base URL used by clients"`
	GenesisKey string `toml:"genesis-key" mapstructure:"genesis-key" comment:"public key of eosio; empty selects the development key"`
}

// Storage selects the journal and history backends.
type Storage struct {
	PostgresDSN   string `toml:"postgres-dsn" mapstructure:"postgres-dsn" comment:"action journal; empty keeps it in memory"`
	ClickhouseDSN string `toml:"clickhouse-dsn" mapstructure:"clickhouse-dsn" comment:"transfer history; empty keeps it in memory"`
}

type Wallet struct {
	Name string `toml:"name" mapstructure:"name"`
	Path string `toml:"path" mapstructure:"path" comment:"bbolt wallet file; empty keeps keys in memory"`
}

type Log struct {
	Format string `toml:"format" mapstructure:"format" comment:"plain, text or json"`
	Level  string `toml:"level" mapstructure:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: daemon.DefaultListenAddr,
			URL:        "http://" + daemon.DefaultListenAddr,
		},
		Wallet: Wallet{Name: "default"},
		Log:    Log{Format: logging.FormatPlain, Level: "info"},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"listen-addr":    "node.listen-addr",
	"url":            "node.url",
	"genesis-key":    "node.genesis-key",
	"postgres-dsn":   "storage.postgres-dsn",
	"clickhouse-dsn": "storage.clickhouse-dsn",
	"wallet-name":    "wallet.name",
	"wallet-path":    "wallet.path",
	"log-format":     "log.format",
	"log-level":      "log.level",
}

// BindFlags registers the configuration flags.
func BindFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String("config", "", "TOML configuration file")
	flags.String("env-file", ".env", "environment file loaded before LEDGER_* variables are read")
	flags.String("listen-addr", def.Node.ListenAddr, "API listen address")
	flags.String("url", def.Node.URL, "API base URL of the node")
	flags.String("genesis-key", "", "public key of the system account (default development key)")
	flags.String("postgres-dsn", "", "PostgreSQL DSN of the action journal (default in-memory)")
	flags.String("clickhouse-dsn", "", "ClickHouse DSN of the transfer history (default in-memory)")
	flags.String("wallet-name", def.Wallet.Name, "wallet name")
	flags.String("wallet-path", "", "bbolt wallet file (default in-memory)")
	flags.String("log-format", def.Log.Format, "log format: plain, text or json")
	flags.String("log-level", def.Log.Level, "log level")
}

// BindClientFlags registers the flags used by API clients.
func BindClientFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "TOML configuration file")
	flags.String("env-file", ".env", "environment file loaded before LEDGER_* variables are read")
	flags.String("url", Default().Node.URL, "API base URL of the node")
}

// Load resolves the configuration. Precedence, highest first: changed
// flags, environment, config file, defaults. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			if err := LoadEnvFile(f.Value.String()); err != nil {
				return nil, err
			}
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("node.listen-addr", def.Node.ListenAddr)
	v.SetDefault("node.url", def.Node.URL)
	v.SetDefault("node.genesis-key", def.Node.GenesisKey)
	v.SetDefault("storage.postgres-dsn", def.Storage.PostgresDSN)
	v.SetDefault("storage.clickhouse-dsn", def.Storage.ClickhouseDSN)
	v.SetDefault("wallet.name", def.Wallet.Name)
	v.SetDefault("wallet.path", def.Wallet.Path)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.level", def.Log.Level)
}

// LoadEnvFile exports the variables of an env file that are not already
// set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// Store writes cfg as TOML.
func Store(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(*cfg)
}

// Logger builds the root logger.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	return logging.New(w, c.Log.Format, c.Log.Level)
}

// Daemon converts the configuration for daemon.New.
func (c *Config) Daemon(logger *zerolog.Logger) (daemon.Config, error) {
	cfg := daemon.Config{
		ListenAddr: c.Node.ListenAddr,
		Storage: daemon.StorageConfig{
			PostgresDSN:   c.Storage.PostgresDSN,
			ClickhouseDSN: c.Storage.ClickhouseDSN,
			WalletPath:    c.Wallet.Path,
		},
		WalletName: c.Wallet.Name,
		Logger:     logger,
	}
	if c.Node.GenesisKey != "" {
		pub, err := keys.ParsePublicKey(c.Node.GenesisKey)
		if err != nil {
			return daemon.Config{}, fmt.Errorf("genesis key: %w", err)
		}
		cfg.Genesis = pub
	}
	return cfg, nil
}
