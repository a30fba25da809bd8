package domain

import "currency-ledger/internal/keys"

// Receipt status constants
const (
	StatusExecuted = "executed"
)

// Receipt confirms an applied action.
type Receipt struct {
	TransactionID string `json:"transaction_id"` // hex SHA256 of the signed action
	Status        string `json:"status"`
	BlockNum      uint64 `json:"block_num"` // chain sequence number
}

// ActionRecord is a journaled action.
// Corresponds to actions table in PostgreSQL.
type ActionRecord struct {
	TransactionID string         // PK
	Seq           uint64         // unique, increasing per chain
	Action        Action         // contract, name, authorization, data
	Signer        keys.PublicKey // key that signed the transaction digest
	Signature     keys.Signature // ed25519 signature of the digest
	CreatedAt     int64          // Unix timestamp in milliseconds
}

// Receipt returns the receipt of the record.
func (r *ActionRecord) Receipt() Receipt {
	return Receipt{TransactionID: r.TransactionID, Status: StatusExecuted, BlockNum: r.Seq}
}

// TransferEvent is a balance movement produced by issue or transfer.
// Corresponds to transfer_events table in ClickHouse.
type TransferEvent struct {
	TransactionID string
	Seq           uint64
	Contract      Name
	Action        ActionName // issue | transfer
	From          Name       // empty for issue
	To            Name
	Amount        uint64 // raw units, see Asset
	Symbol        string
	Memo          string
	TimestampMs   int64
}

// Quantity returns the moved amount as an Asset.
func (e *TransferEvent) Quantity() Asset {
	return Asset{Amount: e.Amount, Symbol: e.Symbol}
}

// SymbolVolume aggregates transfer events per symbol.
type SymbolVolume struct {
	Contract Name
	Symbol   string
	Issued   uint64 // sum of issue amounts
	Moved    uint64 // sum of transfer amounts
	Count    uint64 // number of events
}
