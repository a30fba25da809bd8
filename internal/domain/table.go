package domain

// BalanceRow is one row of a contract's balance table.
type BalanceRow struct {
	Account Name  `json:"account"`
	Balance Asset `json:"balance"`
}

// TableRows is the response shape of a table query.
type TableRows struct {
	Rows []BalanceRow `json:"rows"`
	More bool         `json:"more"`
}
