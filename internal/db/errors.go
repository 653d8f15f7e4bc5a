package db

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnection indicates a transport failure talking to the database.
	// It may be a single timed-out call or a store that is down; the loader
	// pings to tell the two apart.
	ErrConnection = errors.New("database connection lost")

	// ErrAlreadyExists indicates a record with the same unique key already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when multiple concurrent operations attempt to modify the same records.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// connectionMarkers are substrings of transport errors seen when the
// WebSocket is down or the server refuses connections.
var connectionMarkers = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"use of closed network connection",
	"broken pipe",
	"not connected",
	"i/o timeout",
}

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query or transport failure. Returns the
// original error otherwise.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnection) {
		return err
	}

	// Extract QueryError if present - this is a database-level error
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range connectionMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
	}

	return err
}
