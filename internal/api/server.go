package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"currency-ledger/internal/chain"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/observability"
)

// DefaultPingInterval is the feed keepalive interval.
const DefaultPingInterval = 30 * time.Second

// maxBodyBytes bounds request bodies. Contract code is the largest payload.
const maxBodyBytes = 8 << 20

// Wallet is the node wallet. Satisfied by *wallet.KeyStore.
type Wallet interface {
	Name() string
	Import(ctx context.Context, priv keys.PrivateKey) (keys.PublicKey, error)
	PublicKeys() []keys.PublicKey
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Chain  *chain.Chain
	Wallet Wallet
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration
	// Entropy feeds create_key. Defaults to crypto/rand.
	Entropy io.Reader
}

// Server serves the HTTP JSON API of one chain.
type Server struct {
	chain        *chain.Chain
	wallet       Wallet
	logger       zerolog.Logger
	pingInterval time.Duration
	entropy      io.Reader
	upgrader     websocket.Upgrader
	mux          *http.ServeMux
}

// handlerFunc decodes a request and returns the response value.
type handlerFunc func(r *http.Request) (any, error)

// NewServer creates a Server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chain == nil {
		return nil, errors.New("api: chain is required")
	}
	if cfg.Wallet == nil {
		return nil, errors.New("api: wallet is required")
	}

	s := &Server{
		chain:        cfg.Chain,
		wallet:       cfg.Wallet,
		logger:       zerolog.Nop(),
		pingInterval: cfg.PingInterval,
		entropy:      cfg.Entropy,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	if s.pingInterval <= 0 {
		s.pingInterval = DefaultPingInterval
	}
	if s.entropy == nil {
		s.entropy = rand.Reader
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.handle(PathPushAction, s.pushAction)
	s.handle(PathCreateAccount, s.createAccount)
	s.handle(PathSetContract, s.setContract)
	s.handle(PathGetAccount, s.getAccount)
	s.handle(PathGetCode, s.getCode)
	s.handle(PathGetTableRows, s.getTableRows)
	s.handle(PathGetCurrencyBalance, s.getCurrencyBalance)
	s.handle(PathGetInfo, s.getInfo)

	s.handle(PathCreateKey, s.createKey)
	s.handle(PathImportKey, s.importKey)
	s.handle(PathListKeys, s.listKeys)

	s.handle(PathGetTransaction, s.getTransaction)
	s.handle(PathGetActions, s.getActions)
	s.handle(PathGetTransfers, s.getTransfers)
	s.handle(PathGetVolume, s.getVolume)

	s.handle(PathReset, s.reset)

	s.mux.HandleFunc(PathFeed, s.feed)

	s.mux.HandleFunc(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			s.logger.Debug().Err(err).Str("path", PathHealth).Msg("response write failed")
		}
	})
	s.mux.Handle("/metrics", observability.Handler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handle registers a JSON endpoint and records its latency.
func (s *Server) handle(path string, fn handlerFunc) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		code := http.StatusOK
		var body any
		if r.Method != http.MethodPost && r.Method != http.MethodGet {
			code = http.StatusMethodNotAllowed
			body = ErrorResponse{Code: code, Error: ErrorBody{Name: KindBadRequest, What: "method not allowed"}}
		} else if result, err := fn(r); err != nil {
			var kind string
			code, kind = classify(err)
			body = ErrorResponse{Code: code, Error: ErrorBody{Name: kind, What: err.Error()}}
			s.logEvent(code).Str("path", path).Str("kind", kind).Err(err).Msg("request failed")
		} else {
			body = result
		}

		if err := writeJSON(w, code, body); err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("response write failed")
		}
		observability.RecordHTTPRequest(path, code, time.Since(started))
	})
}

func (s *Server) logEvent(code int) *zerolog.Event {
	if code >= http.StatusInternalServerError {
		return s.logger.Error()
	}
	return s.logger.Debug()
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrBadRequest, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func (s *Server) pushAction(r *http.Request) (any, error) {
	var act domain.Action
	if err := decode(r, &act); err != nil {
		return nil, err
	}
	return s.chain.PushAction(r.Context(), act)
}

func (s *Server) createAccount(r *http.Request) (any, error) {
	var req CreateAccountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	acc, receipt, err := s.chain.CreateAccount(r.Context(), req.Creator, req.Name, req.Owner, req.Active)
	if err != nil {
		return nil, err
	}
	return CreateAccountResponse{Account: acc, Receipt: receipt}, nil
}

func (s *Server) setContract(r *http.Request) (any, error) {
	var req SetContractRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	dep, receipt, err := s.chain.SetContract(r.Context(), req.Account, req.Code, req.ABI)
	if err != nil {
		return nil, err
	}
	return SetContractResponse{
		Account:  dep.Account,
		CodeHash: dep.CodeHash.String(),
		ABIHash:  dep.ABIHash.String(),
		Receipt:  receipt,
	}, nil
}

func (s *Server) getAccount(r *http.Request) (any, error) {
	var req AccountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.chain.GetAccount(req.AccountName)
}

func (s *Server) getCode(r *http.Request) (any, error) {
	var req AccountRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	dep, ok, err := s.chain.GetCode(req.AccountName)
	if err != nil {
		return nil, err
	}
	resp := GetCodeResponse{AccountName: req.AccountName}
	if ok {
		hash := dep.CodeHash.String()
		resp.CodeHash = &hash
		resp.ABI = dep.ABI
	}
	return resp, nil
}

func (s *Server) getTableRows(r *http.Request) (any, error) {
	var req TableRowsRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.chain.GetTable(req.Code, req.Limit)
}

func (s *Server) getCurrencyBalance(r *http.Request) (any, error) {
	var req CurrencyBalanceRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return s.chain.Balance(req.Code, req.Account)
}

func (s *Server) getInfo(_ *http.Request) (any, error) {
	return s.chain.Info(), nil
}

func (s *Server) createKey(r *http.Request) (any, error) {
	pair, err := keys.Generate(s.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	pub, err := s.wallet.Import(r.Context(), pair.Private)
	if err != nil {
		return nil, err
	}
	observability.RecordKeyImported()
	return KeyResponse{PublicKey: pub}, nil
}

func (s *Server) importKey(r *http.Request) (any, error) {
	var req ImportKeyRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	pub, err := s.wallet.Import(r.Context(), req.PrivateKey)
	if err != nil {
		return nil, err
	}
	observability.RecordKeyImported()
	return KeyResponse{PublicKey: pub}, nil
}

func (s *Server) listKeys(_ *http.Request) (any, error) {
	return WalletKeys{Wallet: s.wallet.Name(), Keys: s.wallet.PublicKeys()}, nil
}

func (s *Server) getTransaction(r *http.Request) (any, error) {
	var req TransactionRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	rec, err := s.chain.Transaction(r.Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return TransactionFromRecord(rec), nil
}

func (s *Server) getActions(r *http.Request) (any, error) {
	var req ActionsRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	records, err := s.chain.History(r.Context(), req.Account)
	if err != nil {
		return nil, err
	}
	resp := ActionsResponse{Actions: make([]Transaction, 0, len(records))}
	for _, rec := range records {
		resp.Actions = append(resp.Actions, TransactionFromRecord(rec))
	}
	return resp, nil
}

func (s *Server) getTransfers(r *http.Request) (any, error) {
	var req TransfersRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	events, err := s.chain.Transfers(r.Context(), req.Code, req.Account)
	if err != nil {
		return nil, err
	}
	resp := TransfersResponse{Transfers: make([]Transfer, 0, len(events))}
	for _, ev := range events {
		resp.Transfers = append(resp.Transfers, Transfer{
			TransactionID: ev.TransactionID,
			BlockNum:      ev.Seq,
			Action:        ev.Action,
			From:          ev.From,
			To:            ev.To,
			Quantity:      ev.Quantity(),
			Memo:          ev.Memo,
			Timestamp:     ev.TimestampMs,
		})
	}
	return resp, nil
}

func (s *Server) getVolume(r *http.Request) (any, error) {
	var req VolumeRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	volumes, err := s.chain.Volume(r.Context(), req.Code)
	if err != nil {
		return nil, err
	}
	resp := VolumeResponse{Volume: make([]Volume, 0, len(volumes))}
	for _, v := range volumes {
		resp.Volume = append(resp.Volume, Volume{
			Symbol: v.Symbol,
			Issued: domain.NewAsset(v.Issued, v.Symbol),
			Moved:  domain.NewAsset(v.Moved, v.Symbol),
			Count:  v.Count,
		})
	}
	return resp, nil
}

func (s *Server) reset(r *http.Request) (any, error) {
	if r.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: reset requires POST", ErrBadRequest)
	}
	if err := s.chain.Reset(r.Context()); err != nil {
		return nil, err
	}
	return s.chain.Info(), nil
}

// feed streams a notification per applied action until the subscriber
// disconnects or the chain closes.
func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feed upgrade failed")
		return
	}
	defer conn.Close()

	f := s.chain.Feed()
	ch, cancel := f.Subscribe()
	observability.UpdateFeedSubscribers(f.Len())
	defer func() {
		cancel()
		observability.UpdateFeedSubscribers(f.Len())
	}()

	// The reader answers pings and notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	writeTimeout := 10 * time.Second
	for {
		select {
		case n, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "chain closed"))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
