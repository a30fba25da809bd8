// Package daemon runs a ledger node in process: storage, wallet, chain and
// the HTTP API, with start, stop and clean-state reset.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"currency-ledger/internal/api"
	"currency-ledger/internal/chain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/logging"
	"currency-ledger/internal/observability"
	"currency-ledger/internal/wallet"
)

// DefaultListenAddr is the API address of a node.
const DefaultListenAddr = "127.0.0.1:8888"

var (
	// ErrRunning is returned by Start on a running node.
	ErrRunning = errors.New("daemon already running")

	// ErrNotRunning is returned by Stop and Reset on a stopped node.
	ErrNotRunning = errors.New("daemon not running")
)

// StorageConfig selects the storage backends. Empty values select memory.
type StorageConfig struct {
	PostgresDSN   string
	ClickhouseDSN string
	WalletPath    string
}

// Config configures a Daemon.
type Config struct {
	// ListenAddr defaults to DefaultListenAddr. Use "127.0.0.1:0" for a free port.
	ListenAddr string
	Storage    StorageConfig
	// WalletName defaults to wallet.DefaultName.
	WalletName string
	// Genesis is the key of the system account. Zero means the development key.
	Genesis keys.PublicKey
	// PingInterval is the feed keepalive interval.
	PingInterval time.Duration
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Daemon is a node that can be started, stopped and reset.
type Daemon struct {
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	chain    *chain.Chain
	wallet   *wallet.KeyStore
	server   *http.Server
	listener net.Listener
	cleanup  func()
	started  time.Time
	serveErr chan error
}

// New creates a stopped daemon.
func New(cfg Config) *Daemon {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.WalletName == "" {
		cfg.WalletName = wallet.DefaultName
	}

	d := &Daemon{cfg: cfg, logger: zerolog.Nop()}
	if cfg.Logger != nil {
		d.logger = *cfg.Logger
	}
	return d
}

// Start opens the stores and the wallet, creates a chain at genesis and
// serves the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chain != nil {
		return ErrRunning
	}

	st, cleanup, err := openStores(ctx, d.cfg.Storage)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	ks, err := wallet.Open(ctx, d.cfg.WalletName, st.wallet)
	if err != nil {
		cleanup()
		return err
	}

	chainLogger := logging.Module(d.logger, "chain")
	c, err := chain.New(chain.Config{
		Genesis: d.cfg.Genesis,
		Wallet:  ks,
		Journal: st.journal,
		Events:  st.events,
		Logger:  &chainLogger,
	})
	if err != nil {
		cleanup()
		return err
	}

	apiLogger := logging.Module(d.logger, "api")
	srv, err := api.NewServer(api.ServerConfig{
		Chain:        c,
		Wallet:       ks,
		Logger:       &apiLogger,
		PingInterval: d.cfg.PingInterval,
	})
	if err != nil {
		c.Close()
		cleanup()
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", d.cfg.ListenAddr)
	if err != nil {
		c.Close()
		cleanup()
		return fmt.Errorf("listen on %s: %w", d.cfg.ListenAddr, err)
	}

	d.chain = c
	d.wallet = ks
	d.listener = ln
	d.cleanup = cleanup
	d.started = time.Now()
	d.server = &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.serveErr = make(chan error, 1)

	go func(server *http.Server, errCh chan<- error) {
		err := server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
		close(errCh)
	}(d.server, d.serveErr)

	observability.RecordStart(d.started)

	journal, events, walletBackend := d.cfg.Storage.backendNames()
	d.logger.Info().
		Str("url", d.url()).
		Str("journal", journal).
		Str("events", events).
		Str("wallet", walletBackend).
		Str("wallet_name", ks.Name()).
		Msg("node started")
	return nil
}

// Stop shuts the API down, ends feed subscriptions and closes the stores.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chain == nil {
		return ErrNotRunning
	}

	// Feed handlers hold hijacked connections that Shutdown does not wait for.
	d.chain.Close()
	err := d.server.Shutdown(ctx)
	if err != nil {
		d.server.Close()
	}
	if serveErr := <-d.serveErr; serveErr != nil && err == nil {
		err = serveErr
	}
	d.cleanup()

	d.logger.Info().Dur("uptime", time.Since(d.started)).Msg("node stopped")

	d.chain = nil
	d.wallet = nil
	d.server = nil
	d.listener = nil
	d.cleanup = nil
	return err
}

// Reset returns the running node to genesis. Wallet keys are kept.
func (d *Daemon) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chain == nil {
		return ErrNotRunning
	}
	return d.chain.Reset(ctx)
}

// Running reports whether the node is serving.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chain != nil
}

// URL returns the API base URL, or "" when stopped.
func (d *Daemon) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url()
}

func (d *Daemon) url() string {
	if d.listener == nil {
		return ""
	}
	return "http://" + d.listener.Addr().String()
}

// Chain returns the chain of the running node, or nil when stopped.
func (d *Daemon) Chain() *chain.Chain {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chain
}

// Done is closed once the API server exits after delivering its error, if
// any. Nil when stopped.
func (d *Daemon) Done() <-chan error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chain == nil {
		return nil
	}
	return d.serveErr
}

// String describes the node state.
func (d *Daemon) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chain == nil {
		return "node stopped"
	}
	info := d.chain.Info()
	return fmt.Sprintf("node running at %s: head block %d, %d accounts, %d contracts, wallet %q with %d keys, up %s",
		d.url(), info.HeadBlockNum, info.Accounts, info.Contracts,
		d.wallet.Name(), len(d.wallet.PublicKeys()), time.Since(d.started).Round(time.Second))
}
