// Package chain is the node state: it wires the registry, the contract
// deployer and the ledger state machine, assigns transaction ids, signs and
// journals every applied action and publishes receipts.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"currency-ledger/internal/contract"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/idhash"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/ledger"
	"currency-ledger/internal/observability"
	"currency-ledger/internal/registry"
	"currency-ledger/internal/storage"
	"currency-ledger/internal/storage/memory"
)

// DevGenesisPhrase seeds the development genesis key used when none is configured.
const DevGenesisPhrase = "currency-ledger development genesis"

// DevGenesisKey returns the development genesis key pair.
func DevGenesisKey() keys.KeyPair {
	return keys.FromPhrase(DevGenesisPhrase)
}

// Signer holds private keys. Satisfied by *wallet.KeyStore.
type Signer interface {
	HasAuthority(pub keys.PublicKey) bool
	Sign(payload []byte, pub keys.PublicKey) (keys.Signature, error)
}

// Config configures a Chain.
type Config struct {
	// Genesis is the owner and active key of the system account.
	// Zero means DevGenesisKey.
	Genesis keys.PublicKey
	// Wallet authorizes and signs actions. Required.
	Wallet Signer
	// Journal stores applied actions. Nil means in-memory.
	Journal storage.ActionStore
	// Events stores transfer history. Nil means in-memory.
	Events storage.TransferEventStore
	// Feed receives a notification per applied action. Nil means a new feed.
	Feed *Feed
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Info summarizes the chain state.
type Info struct {
	HeadBlockNum uint64         `json:"head_block_num"`
	Accounts     int            `json:"accounts"`
	Contracts    int            `json:"contracts"`
	GenesisKey   keys.PublicKey `json:"genesis_key"`
}

// state is everything a reset discards.
type state struct {
	registry *registry.Registry
	deployer *contract.Deployer
	machine  *ledger.Machine
	seq      uint64
}

// Chain serializes every mutation under one write lock. Queries take the
// read lock, so they never observe an action half applied.
type Chain struct {
	mu      sync.RWMutex
	genesis keys.PublicKey
	wallet  Signer
	journal storage.ActionStore
	events  storage.TransferEventStore
	feed    *Feed
	logger  zerolog.Logger
	now     func() time.Time

	state *state
}

// New creates a chain at genesis.
func New(cfg Config) (*Chain, error) {
	if cfg.Wallet == nil {
		return nil, errors.New("chain: wallet is required")
	}

	c := &Chain{
		genesis: cfg.Genesis,
		wallet:  cfg.Wallet,
		journal: cfg.Journal,
		events:  cfg.Events,
		feed:    cfg.Feed,
		logger:  zerolog.Nop(),
		now:     cfg.Now,
	}
	if c.genesis.IsZero() {
		c.genesis = DevGenesisKey().Public
	}
	if c.journal == nil {
		c.journal = memory.NewActionStore()
	}
	if c.events == nil {
		c.events = memory.NewTransferEventStore()
	}
	if c.feed == nil {
		c.feed = NewFeed(0)
	}
	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.state = c.genesisState()
	return c, nil
}

func (c *Chain) genesisState() *state {
	reg := registry.New(c.wallet, c.genesis)
	deployer := contract.NewDeployer(reg, c.wallet)
	return &state{
		registry: reg,
		deployer: deployer,
		machine:  ledger.NewMachine(reg, c.wallet, deployer),
	}
}

// Feed returns the receipt feed.
func (c *Chain) Feed() *Feed {
	return c.feed
}

// PushAction applies a contract action and journals it.
func (c *Chain) PushAction(ctx context.Context, act domain.Action) (domain.Receipt, error) {
	started := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	signer, err := c.state.machine.Signer(act)
	if err != nil {
		return domain.Receipt{}, c.rejected(act, err)
	}
	e, err := c.sign(act, signer)
	if err != nil {
		return domain.Receipt{}, c.rejected(act, err)
	}
	if err := c.state.machine.Apply(act); err != nil {
		return domain.Receipt{}, c.rejected(act, err)
	}

	rec := c.commit(ctx, act, e, started)
	c.recordTransfer(ctx, rec)
	return rec.Receipt(), nil
}

// CreateAccount creates an account on behalf of creator.
func (c *Chain) CreateAccount(ctx context.Context, creator, name domain.Name, owner, active keys.PublicKey) (domain.Account, domain.Receipt, error) {
	started := c.now()

	act, err := domain.NewAction(domain.SystemAccount, domain.ActionNewAccount, domain.Active(creator), domain.NewAccountPayload{
		Creator:   creator,
		Name:      name,
		OwnerKey:  owner.String(),
		ActiveKey: active.String(),
	})
	if err != nil {
		return domain.Account{}, domain.Receipt{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	signer, err := c.state.registry.CheckCreate(creator, name, owner, active)
	if err != nil {
		return domain.Account{}, domain.Receipt{}, c.rejected(act, err)
	}
	e, err := c.sign(act, signer)
	if err != nil {
		return domain.Account{}, domain.Receipt{}, c.rejected(act, err)
	}
	acc, err := c.state.registry.CreateAccount(creator, name, owner, active)
	if err != nil {
		return domain.Account{}, domain.Receipt{}, c.rejected(act, err)
	}

	rec := c.commit(ctx, act, e, started)
	observability.RecordAccountCreated()
	return acc, rec.Receipt(), nil
}

// SetContract deploys code and abi to account.
func (c *Chain) SetContract(ctx context.Context, account domain.Name, code, abi []byte) (contract.Deployment, domain.Receipt, error) {
	started := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	act := domain.Action{Contract: domain.SystemAccount, Name: domain.ActionSetCode, Authorization: domain.Active(account)}
	signer, err := c.state.deployer.Authorize(account)
	if err != nil {
		return contract.Deployment{}, domain.Receipt{}, c.rejected(act, err)
	}

	act.Data, err = json.Marshal(domain.SetCodePayload{
		Account:  account,
		CodeHash: contract.HashOf(code).String(),
		ABIHash:  contract.HashOf(abi).String(),
	})
	if err != nil {
		return contract.Deployment{}, domain.Receipt{}, fmt.Errorf("encode setcode payload: %w", err)
	}
	e, err := c.sign(act, signer)
	if err != nil {
		return contract.Deployment{}, domain.Receipt{}, c.rejected(act, err)
	}
	dep, err := c.state.deployer.Deploy(account, code, abi)
	if err != nil {
		return contract.Deployment{}, domain.Receipt{}, c.rejected(act, err)
	}

	rec := c.commit(ctx, act, e, started)
	observability.RecordContractDeployed()
	return dep, rec.Receipt(), nil
}

// GetAccount returns the named account.
func (c *Chain) GetAccount(name domain.Name) (domain.Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state.registry.Resolve(name)
}

// Accounts lists every account.
func (c *Chain) Accounts() []domain.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state.registry.Accounts()
}

// GetCode returns the deployment on account. ok is false for an existing
// account without code.
func (c *Chain) GetCode(account domain.Name) (dep contract.Deployment, ok bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.state.registry.Resolve(account); err != nil {
		return contract.Deployment{}, false, err
	}
	dep, ok = c.state.deployer.Deployment(account)
	return dep, ok, nil
}

// CodeHash returns the code hash of account, ok is false before any deployment.
func (c *Chain) CodeHash(account domain.Name) (contract.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state.deployer.CodeHash(account)
}

// GetTable returns the balance rows of a contract. limit <= 0 returns all rows.
func (c *Chain) GetTable(contractAccount domain.Name, limit int) (domain.TableRows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.state.deployer.CodeHash(contractAccount); !ok {
		return domain.TableRows{}, fmt.Errorf("table of %s: %w", contractAccount, domain.ErrUnknownContract)
	}

	result := domain.TableRows{Rows: []domain.BalanceRow{}}
	t, ok := c.state.machine.Table(contractAccount)
	if !ok {
		return result, nil
	}

	result.Rows = t.Rows()
	if limit > 0 && len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
		result.More = true
	}
	return result, nil
}

// Balance returns the balance of account in a contract table, or an empty
// list if the contract has issued nothing.
func (c *Chain) Balance(contractAccount, account domain.Name) ([]domain.Asset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.state.deployer.CodeHash(contractAccount); !ok {
		return nil, fmt.Errorf("balance in %s: %w", contractAccount, domain.ErrUnknownContract)
	}
	if _, err := c.state.registry.Resolve(account); err != nil {
		return nil, err
	}
	t, ok := c.state.machine.Table(contractAccount)
	if !ok {
		return []domain.Asset{}, nil
	}
	return []domain.Asset{t.Balance(account)}, nil
}

// Supply returns the issued supply of a contract.
func (c *Chain) Supply(contractAccount domain.Name) (domain.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.state.machine.Table(contractAccount)
	if !ok {
		return domain.Asset{}, false
	}
	return t.Supply(), true
}

// CheckConservation verifies every table.
func (c *Chain) CheckConservation() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.state.machine.Tables() {
		if err := t.CheckConservation(); err != nil {
			return err
		}
	}
	return nil
}

// Info returns a summary of the chain.
func (c *Chain) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Info{
		HeadBlockNum: c.state.seq,
		Accounts:     len(c.state.registry.Accounts()),
		Contracts:    len(c.state.deployer.Contracts()),
		GenesisKey:   c.genesis,
	}
}

// Transaction returns a journaled action by transaction id.
func (c *Chain) Transaction(ctx context.Context, transactionID string) (*domain.ActionRecord, error) {
	return c.journal.GetByID(ctx, transactionID)
}

// History returns the journaled actions authorized by account.
func (c *Chain) History(ctx context.Context, account domain.Name) ([]*domain.ActionRecord, error) {
	return c.journal.GetByActor(ctx, account)
}

// Blocks returns the journaled actions with seq in [from, to].
func (c *Chain) Blocks(ctx context.Context, from, to uint64) ([]*domain.ActionRecord, error) {
	return c.journal.GetBySeqRange(ctx, from, to)
}

// Transfers returns the balance movements of account in a contract.
func (c *Chain) Transfers(ctx context.Context, contractAccount, account domain.Name) ([]*domain.TransferEvent, error) {
	return c.events.GetByAccount(ctx, contractAccount, account)
}

// Volume returns per-symbol totals of a contract.
func (c *Chain) Volume(ctx context.Context, contractAccount domain.Name) ([]*domain.SymbolVolume, error) {
	return c.events.GetVolume(ctx, contractAccount)
}

// Reset discards all state and returns to genesis. Wallet keys survive.
func (c *Chain) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.journal.Truncate(ctx); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}
	if err := c.events.Truncate(ctx); err != nil {
		return fmt.Errorf("reset transfer events: %w", err)
	}
	c.state = c.genesisState()

	observability.RecordReset()
	c.logger.Info().Msg("chain reset to genesis")
	return nil
}

// Close ends every feed subscription.
func (c *Chain) Close() {
	c.feed.closeAll()
}

// entry is the signed journal record of an action not yet applied.
type entry struct {
	seq    uint64
	signer keys.PublicKey
	sig    keys.Signature
}

// sign signs act as the next sequence number. It runs before the action
// mutates anything. Caller holds c.mu.
func (c *Chain) sign(act domain.Action, signer keys.PublicKey) (entry, error) {
	seq := c.state.seq + 1
	digest := idhash.TransactionDigest(seq, act)
	sig, err := c.wallet.Sign(digest[:], signer)
	if err != nil {
		return entry{}, fmt.Errorf("sign %s: %w", act, err)
	}
	return entry{seq: seq, signer: signer, sig: sig}, nil
}

// commit advances the sequence, journals and publishes an action the core
// has already applied. Caller holds c.mu.
func (c *Chain) commit(ctx context.Context, act domain.Action, e entry, started time.Time) *domain.ActionRecord {
	seq := e.seq
	c.state.seq = seq
	now := c.now()
	rec := &domain.ActionRecord{
		TransactionID: idhash.ComputeTransactionID(seq, act),
		Seq:           seq,
		Action:        act,
		Signer:        e.signer,
		Signature:     e.sig,
		CreatedAt:     now.UnixMilli(),
	}

	// The journal is a record of state held in memory; a failed write is
	// reported but does not undo the action.
	journalStarted := time.Now()
	err := c.journal.Insert(ctx, rec)
	observability.RecordDBQuery("journal", "insert", time.Since(journalStarted), err)
	if err != nil {
		c.logger.Error().Err(err).Str("transaction_id", rec.TransactionID).Msg("journal write failed")
	}

	observability.RecordActionApplied(string(act.Contract), string(act.Name), seq, now.Sub(started))
	c.logger.Info().
		Str("action", act.String()).
		Str("authorization", act.Authorization.String()).
		Str("transaction_id", rec.TransactionID).
		Uint64("block_num", seq).
		Msg("action applied")

	c.feed.publish(Notification{Receipt: rec.Receipt(), Action: act, Timestamp: rec.CreatedAt})
	return rec
}

// recordTransfer stores the balance movement of an applied issue or transfer.
func (c *Chain) recordTransfer(ctx context.Context, rec *domain.ActionRecord) {
	ev := &domain.TransferEvent{
		TransactionID: rec.TransactionID,
		Seq:           rec.Seq,
		Contract:      rec.Action.Contract,
		Action:        rec.Action.Name,
		TimestampMs:   rec.CreatedAt,
	}

	switch rec.Action.Name {
	case domain.ActionIssue:
		var p domain.IssuePayload
		if err := json.Unmarshal(rec.Action.Data, &p); err != nil {
			c.transferDecodeFailed(rec, err)
			return
		}
		ev.To, ev.Amount, ev.Symbol, ev.Memo = p.To, p.Quantity.Amount, p.Quantity.Symbol, p.Memo
	case domain.ActionTransfer:
		var p domain.TransferPayload
		if err := json.Unmarshal(rec.Action.Data, &p); err != nil {
			c.transferDecodeFailed(rec, err)
			return
		}
		ev.From, ev.To, ev.Amount, ev.Symbol, ev.Memo = p.From, p.To, p.Quantity.Amount, p.Quantity.Symbol, p.Memo
	default:
		return
	}

	started := time.Now()
	err := c.events.InsertBulk(ctx, []*domain.TransferEvent{ev})
	observability.RecordDBQuery("events", "insert", time.Since(started), err)
	if err != nil {
		c.logger.Error().Err(err).Str("transaction_id", rec.TransactionID).Msg("transfer event write failed")
	}
}

func (c *Chain) transferDecodeFailed(rec *domain.ActionRecord, err error) {
	observability.RecordDBError("events", "decode")
	c.logger.Error().
		Err(err).
		Str("transaction_id", rec.TransactionID).
		Str("action", rec.Action.String()).
		Msg("transfer event not recorded")
}

func (c *Chain) rejected(act domain.Action, err error) error {
	kind := domain.ErrorKind(err)
	observability.RecordActionRejected(string(act.Name), kind)
	c.logger.Debug().
		Str("action", act.String()).
		Str("authorization", act.Authorization.String()).
		Str("kind", kind).
		Err(err).
		Msg("action rejected")
	return err
}
