package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jytian/gasops/internal/core/domain"
)

func TestAuditLoggerDrainsOnClose(t *testing.T) {
	store := newMemoryStore()
	audit := NewAuditLogger(store, testLogger(), 64)

	for i := 0; i < 10; i++ {
		audit.Record(domain.AuditCreate, "order", "o", nil, map[string]int{"n": i})
	}
	audit.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.auditLogs, 10)
	assert.Equal(t, "order", store.auditLogs[0].EntityType)
	assert.NotNil(t, store.auditLogs[0].NewValues)
}

func TestAuditLoggerSwallowsStoreFailures(t *testing.T) {
	store := newMemoryStore()
	store.insertAuditErr = errors.New("audit table unavailable")
	audit := NewAuditLogger(store, testLogger(), 4)

	// Best-effort: a failing audit store must not panic or block.
	audit.Record(domain.AuditUpdate, "inventory", "inv-1", nil, nil)
	audit.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.auditLogs)
}
