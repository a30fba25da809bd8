package daemon

import (
	"context"
	"fmt"

	"currency-ledger/internal/storage"
	boltstore "currency-ledger/internal/storage/bolt"
	chstore "currency-ledger/internal/storage/clickhouse"
	"currency-ledger/internal/storage/memory"
	pgstore "currency-ledger/internal/storage/postgres"
)

// stores holds the storage backends of a node.
type stores struct {
	journal storage.ActionStore
	events  storage.TransferEventStore
	wallet  storage.WalletKeyStore
}

// openStores connects the configured backends. An empty DSN or path selects
// the in-memory store. The returned cleanup closes whatever was opened.
func openStores(ctx context.Context, cfg StorageConfig) (*stores, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	s := &stores{
		journal: memory.NewActionStore(),
		events:  memory.NewTransferEventStore(),
		wallet:  memory.NewWalletKeyStore(),
	}

	// PostgreSQL action journal
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.journal = pgstore.NewActionStore(pool)
	}

	// ClickHouse transfer history
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		if err := conn.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		s.events = chstore.NewTransferEventStore(conn)
	}

	// bbolt wallet file
	if cfg.WalletPath != "" {
		db, err := boltstore.Open(cfg.WalletPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		s.wallet = boltstore.NewWalletKeyStore(db)
	}

	return s, cleanup, nil
}

// backendNames describes the configured backends for logs and status.
func (c StorageConfig) backendNames() (journal, events, wallet string) {
	journal, events, wallet = "memory", "memory", "memory"
	if c.PostgresDSN != "" {
		journal = "postgres"
	}
	if c.ClickhouseDSN != "" {
		events = "clickhouse"
	}
	if c.WalletPath != "" {
		wallet = "bolt"
	}
	return journal, events, wallet
}
