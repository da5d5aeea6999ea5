package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

// mockMongoDuplicateKeyError creates an error that IsMongoDuplicateKeyError will recognize.
func mockMongoDuplicateKeyError(key string) error {
	mongoErr := mongo.WriteError{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.quotes index: job_id_1_pro_id_1 dup key: { : \"%s\" }", key),
	}
	return mongo.WriteException{WriteErrors: []mongo.WriteError{mongoErr}}
}

func transientTxnError() error {
	return mongo.CommandError{
		Code:   112,
		Name:   "WriteConflict",
		Labels: []string{"TransientTransactionError"},
	}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		return nil
	}, 3, IsTransientError)

	assert.NoError(t, err)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_NonRetryableReturnsImmediately(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	err := WithRetries(func() error {
		opCalled++
		return expectedErr
	}, 3, IsTransientError)

	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, opCalled)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	maxRetries := 2
	err := WithRetries(func() error {
		opCalled++
		return transientTxnError()
	}, maxRetries, IsTransientError)

	assert.Error(t, err)
	assert.True(t, IsTransientError(err))
	assert.Equal(t, maxRetries+1, opCalled)
}

func TestWithRetries_ConflictResolves(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		if opCalled < 3 {
			return transientTxnError()
		}
		return nil
	}, 3, IsTransientError)

	assert.NoError(t, err)
	assert.Equal(t, 3, opCalled)
}

func TestWithRetries_DuplicateKeyPredicate(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		if opCalled == 1 {
			return mockMongoDuplicateKeyError("cus_123")
		}
		return nil
	}, 1, IsMongoDuplicateKeyError)

	assert.NoError(t, err)
	assert.Equal(t, 2, opCalled)
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.True(t, IsMongoDuplicateKeyError(mockMongoDuplicateKeyError("x")))
	assert.True(t, IsMongoDuplicateKeyError(fmt.Errorf("insert quote: %w", mockMongoDuplicateKeyError("x"))))
	assert.True(t, IsMongoDuplicateKeyError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}},
	}))
	assert.True(t, IsMongoDuplicateKeyError(mongo.CommandError{Code: 11000}))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("boom")))
	assert.False(t, IsMongoDuplicateKeyError(transientTxnError()))
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(transientTxnError()))
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("boom")))
	assert.False(t, IsTransientError(mockMongoDuplicateKeyError("x")))
}

func TestTry_RetriesTransientThenSucceeds(t *testing.T) {
	var opCalled int
	err := Try(func() error {
		opCalled++
		if opCalled < 3 {
			return transientTxnError()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, opCalled)
}

func TestTry_StopsAfterDefaultRetries(t *testing.T) {
	var opCalled int
	err := Try(func() error {
		opCalled++
		return transientTxnError()
	})

	assert.True(t, IsTransientError(err))
	assert.Equal(t, DefaultMaxRetries+1, opCalled)
}

func TestTry_DoesNotRetryNotFound(t *testing.T) {
	var opCalled int
	err := Try(func() error {
		opCalled++
		return mongo.ErrNoDocuments
	})

	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	assert.Equal(t, 1, opCalled)
}
