package restapi

import (
	"errors"
	"sync"
	"time"

	"github.com/perchdb/perch"
)

// errGone covers both a transaction that expired and one that never existed;
// the server cannot tell them apart once the entry is dropped.
var errGone = errors.New("transaction expired or unknown")

// serverTx is one open transaction held by the development server.
type serverTx struct {
	id         string
	statements []perch.Statement
	expires    time.Time
}

// txTable is the server's open-transaction registry with TTL expiry. Expired
// entries are dropped lazily on access; clients see them as gone.
type txTable struct {
	mu        sync.Mutex
	txs       map[string]*serverTx
	ttl       time.Duration
	committed []perch.Statement
}

func newTxTable(ttl time.Duration) *txTable {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &txTable{
		txs: make(map[string]*serverTx),
		ttl: ttl,
	}
}

func (tb *txTable) reap(now time.Time) {
	for id, tx := range tb.txs {
		if now.After(tx.expires) {
			delete(tb.txs, id)
		}
	}
}

// begin opens a server-side transaction holding the given statements.
func (tb *txTable) begin(stmts []perch.Statement) *serverTx {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	tb.reap(now)
	tx := &serverTx{
		id:         perch.NewUUID().String(),
		statements: stmts,
		expires:    now.Add(tb.ttl),
	}
	tb.txs[tx.id] = tx
	return tx
}

// append adds statements to an open transaction and refreshes its TTL.
func (tb *txTable) append(id string, stmts []perch.Statement) (*serverTx, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	tb.reap(now)
	tx, ok := tb.txs[id]
	if !ok {
		return nil, errGone
	}
	tx.statements = append(tx.statements, stmts...)
	tx.expires = now.Add(tb.ttl)
	return tx, nil
}

// commit finalizes the transaction, moving its statements to the committed log.
func (tb *txTable) commit(id string) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.reap(time.Now())
	tx, ok := tb.txs[id]
	if !ok {
		return errGone
	}
	delete(tb.txs, id)
	tb.committed = append(tb.committed, tx.statements...)
	return nil
}

// delete discards the transaction. Discarding a gone transaction is reported
// so the client can mark expiry.
func (tb *txTable) delete(id string) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.reap(time.Now())
	if _, ok := tb.txs[id]; !ok {
		return errGone
	}
	delete(tb.txs, id)
	return nil
}

// open returns the number of open transactions.
func (tb *txTable) open() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.reap(time.Now())
	return len(tb.txs)
}

// committedCount returns the number of statements committed so far.
func (tb *txTable) committedCount() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.committed)
}
