package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/adapters/sqlite"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

func TestSQLiteAuditStore_Contract(t *testing.T) {
	store, err := sqlite.NewAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ports.RunAuditStoreContract(t, store)
}
