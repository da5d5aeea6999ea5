package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// Retryable decides whether a failed Operation may be attempted again.
type Retryable func(err error) bool

const DefaultMaxRetries = 3

const duplicateKeyCode = 11000

// Try executes an operation, retrying transient MongoDB failures with DefaultMaxRetries.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsTransientError)
}

// WithRetries executes op up to maxRetries+1 times while retryable accepts its error.
// Non-retryable errors are returned immediately.
func WithRetries(op Operation, maxRetries int, retryable Retryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // incremental backoff
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == duplicateKeyCode {
		return true
	}
	return false
}

// IsTransientError reports whether MongoDB labelled err as safe to retry.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var le mongo.LabeledError
	if errors.As(err, &le) {
		if le.HasErrorLabel("TransientTransactionError") || le.HasErrorLabel("RetryableWriteError") {
			return true
		}
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
