package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrAccountNotFound = errors.New("account not found")

	// sync errors
	ErrSyncNotReady     = errors.New("account has no delta token, bootstrap sync must run first")
	ErrSyncInProgress   = errors.New("sync already in progress for account")
	ErrBootstrapTimeout = errors.New("bootstrap sync did not become ready in time")

	// search index errors
	ErrIndexCorrupted = errors.New("search index blob could not be restored")
)
