package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
)

const (
	defaultMaxRetries = 3
	retryBaseDelay    = 100 * time.Millisecond

	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// TxFunc is one unit of work running inside a transaction.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

// TxManager runs units of work as single atomic transactions.
type TxManager struct {
	db  *sqlx.DB
	log *logrus.Entry
}

func NewTxManager(db *sqlx.DB, log *logrus.Entry) *TxManager {
	return &TxManager{db: db, log: log}
}

// WithinTx runs fn inside one transaction. Any returned error or panic
// rolls back every write performed inside fn.
func (m *TxManager) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
			}
			return
		}

		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// WithinTxResult is the value-returning form of TxManager.WithinTx.
func WithinTxResult[T any](ctx context.Context, m *TxManager, fn func(ctx context.Context, tx *sqlx.Tx) (T, error)) (res T, err error) {
	err = m.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var fnErr error
		res, fnErr = fn(ctx, tx)
		return fnErr
	})
	return res, err
}

// Batch runs all ops in one transaction. Transient store failures are
// retried up to maxRetries times with exponential backoff (2^attempt *
// 100ms); domain errors fail immediately and are never retried.
func (m *TxManager) Batch(ctx context.Context, maxRetries int, ops ...TxFunc) error {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := m.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
			for _, op := range ops {
				if err := op(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		backoff := retryBaseDelay * (1 << attempt)
		m.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warn("transient failure in batch operation, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// isRetryable classifies transient store failures: lock wait timeouts,
// deadlocks, dropped connections and statement timeouts. Domain errors are
// final.
func isRetryable(err error) bool {
	if domain.IsDomainError(err) {
		return false
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrLockWaitTimeout || me.Number == mysqlErrDeadlock
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
