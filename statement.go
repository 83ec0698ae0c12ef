package perch

// Statement is one unit of work executed inside a transaction. Perch does not
// interpret the statement text; it only carries statements to the backend.
type Statement struct {
	Text       string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// StatementResult holds the rows a single statement produced.
type StatementResult struct {
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
}

// Wire payloads shared by the inhttp client and the restapi development server.

// TxRequest is the body of transaction begin/append requests.
type TxRequest struct {
	Statements []Statement `json:"statements"`
}

// TxResponse is the body of transaction begin/append/commit responses.
type TxResponse struct {
	ID      string            `json:"id,omitempty"`
	Expires string            `json:"expires,omitempty"`
	Results []StatementResult `json:"results,omitempty"`
	Errors  []APIError        `json:"errors,omitempty"`
}

// APIError is a server-reported error. Code "TransactionExpired" means the
// server discarded the transaction; the client maps it to MarkExpired.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerInfo is returned by the handshake endpoint.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExpiredErrorCode is the wire error code for a server-side discarded transaction.
const ExpiredErrorCode = "TransactionExpired"
