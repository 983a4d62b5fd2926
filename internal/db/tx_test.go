package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTxTest(t *testing.T) *gorm.DB {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		CleanupTestDB(testDB)
	})
	return testDB
}

func countUsers(t *testing.T, conn *gorm.DB) int64 {
	var count int64
	require.NoError(t, conn.Model(&model.User{}).Count(&count).Error)
	return count
}

func TestWithTransaction_Commits(t *testing.T) {
	testDB := setupTxTest(t)

	err := WithTransaction(context.Background(), testDB, func(tx *gorm.DB) error {
		return tx.Create(&model.User{Email: "a@example.com"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countUsers(t, testDB))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	testDB := setupTxTest(t)
	boom := errors.New("boom")

	err := WithTransaction(context.Background(), testDB, func(tx *gorm.DB) error {
		if err := tx.Create(&model.User{Email: "a@example.com"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countUsers(t, testDB))
}

func TestWithTransaction_RetriesTransientFailure(t *testing.T) {
	testDB := setupTxTest(t)
	attempts := 0

	err := WithTransactionOptions(context.Background(), testDB, TxOptions{
		Timeout:        time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	}, func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&model.User{Email: "retry@example.com"}).Error; err != nil {
			return err
		}
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(1), countUsers(t, testDB), "failed attempts must not leave rows behind")
}

func TestWithTransaction_GivesUpAfterMaxRetries(t *testing.T) {
	testDB := setupTxTest(t)
	attempts := 0

	err := WithTransactionOptions(context.Background(), testDB, TxOptions{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
	}, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retries")
}

func TestWithTransaction_DoesNotRetryPermanentFailure(t *testing.T) {
	testDB := setupTxTest(t)
	attempts := 0

	err := WithTransaction(context.Background(), testDB, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithTransaction_Timeout(t *testing.T) {
	testDB := setupTxTest(t)

	err := WithTransactionOptions(context.Background(), testDB, TxOptions{
		Timeout: 20 * time.Millisecond,
	}, func(tx *gorm.DB) error {
		<-tx.Statement.Context.Done()
		return tx.Statement.Context.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
