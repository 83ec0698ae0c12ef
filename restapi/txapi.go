package restapi

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perchdb/perch"
)

// Server hosts the development implementation of the PerchDB transaction API.
type Server struct {
	table   *txTable
	version string
}

// NewServer returns a server reporting the given version during handshake.
// ttl bounds how long an idle open transaction survives.
func NewServer(version string, ttl time.Duration) *Server {
	if version == "" {
		version = "2.3.0"
	}
	return &Server{
		table:   newTxTable(ttl),
		version: version,
	}
}

// OpenTransactions returns the number of transactions currently open.
func (s *Server) OpenTransactions() int {
	return s.table.open()
}

// CommittedStatements returns the number of statements committed so far.
func (s *Server) CommittedStatements() int {
	return s.table.committedCount()
}

func goneResponse() perch.TxResponse {
	return perch.TxResponse{
		Errors: []perch.APIError{{
			Code:    perch.ExpiredErrorCode,
			Message: "the transaction expired or was never begun",
		}},
	}
}

// GetInfo godoc
// @Summary GetInfo returns server name and version
// @Schemes
// @Description GetInfo responds with the server handshake info as JSON.
// @Tags Transactions
// @Produce json
// @Success 200 {object} perch.ServerInfo
// @Router /info [get]
// @Security Bearer
func (s *Server) GetInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, perch.ServerInfo{
		Name:    "perchdb-dev",
		Version: s.version,
	})
}

// BeginTransaction godoc
// @Summary BeginTransaction opens a transaction
// @Schemes
// @Description BeginTransaction opens a server-side transaction, optionally executing initial statements, and returns its ID and expiry.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param request body perch.TxRequest false "initial statements"
// @Success 201 {object} perch.TxResponse
// @Router /tx [post]
// @Security Bearer
func (s *Server) BeginTransaction(c *gin.Context) {
	var req perch.TxRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			return
		}
	}
	tx := s.table.begin(req.Statements)
	c.IndentedJSON(http.StatusCreated, perch.TxResponse{
		ID:      tx.id,
		Expires: tx.expires.UTC().Format(time.RFC3339),
	})
}

// AppendStatements godoc
// @Summary AppendStatements executes statements in an open transaction
// @Schemes
// @Description AppendStatements adds statements to the open transaction and refreshes its expiry.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "transaction ID"
// @Param request body perch.TxRequest true "statements"
// @Failure 404 {object} perch.TxResponse
// @Success 200 {object} perch.TxResponse
// @Router /tx/{id} [post]
// @Security Bearer
func (s *Server) AppendStatements(c *gin.Context) {
	var req perch.TxRequest
	if err := c.BindJSON(&req); err != nil {
		return
	}
	tx, err := s.table.append(c.Param("id"), req.Statements)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, goneResponse())
		return
	}
	c.IndentedJSON(http.StatusOK, perch.TxResponse{
		ID:      tx.id,
		Expires: tx.expires.UTC().Format(time.RFC3339),
	})
}

// CommitTransaction godoc
// @Summary CommitTransaction commits an open transaction
// @Schemes
// @Description CommitTransaction finalizes the transaction, making its statements durable.
// @Tags Transactions
// @Produce json
// @Param id path string true "transaction ID"
// @Failure 404 {object} perch.TxResponse
// @Success 200 {object} perch.TxResponse
// @Router /tx/{id}/commit [post]
// @Security Bearer
func (s *Server) CommitTransaction(c *gin.Context) {
	if err := s.table.commit(c.Param("id")); err != nil {
		c.IndentedJSON(http.StatusNotFound, goneResponse())
		return
	}
	c.IndentedJSON(http.StatusOK, perch.TxResponse{})
}

// DeleteTransaction godoc
// @Summary DeleteTransaction rolls back an open transaction
// @Schemes
// @Description DeleteTransaction discards the transaction and everything it executed.
// @Tags Transactions
// @Produce json
// @Param id path string true "transaction ID"
// @Failure 404 {object} perch.TxResponse
// @Success 200 {object} perch.TxResponse
// @Router /tx/{id} [delete]
// @Security Bearer
func (s *Server) DeleteTransaction(c *gin.Context) {
	if err := s.table.delete(c.Param("id")); err != nil {
		c.IndentedJSON(http.StatusNotFound, goneResponse())
		return
	}
	c.IndentedJSON(http.StatusOK, perch.TxResponse{})
}

// ttlFromEnv reads PERCH_TX_TTL (seconds); zero means the table default.
func ttlFromEnv() time.Duration {
	raw := os.Getenv("PERCH_TX_TTL")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw + "s")
	if err != nil {
		return 0
	}
	return d
}
