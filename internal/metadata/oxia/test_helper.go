package oxia

import (
	"os"
	"testing"

	"github.com/oxia-db/oxia/oxiad/dataserver"
)

// ExternalAddressEnv names the variable that points tests at an already
// running Oxia instead of an embedded one.
const ExternalAddressEnv = "OXIA_SERVICE_ADDRESS"

// StartTestServer returns the address of an Oxia server for t. It uses the
// server named by OXIA_SERVICE_ADDRESS when set and otherwise starts an
// embedded standalone server that is shut down when t finishes.
func StartTestServer(t *testing.T) string {
	t.Helper()

	if addr := os.Getenv(ExternalAddressEnv); addr != "" {
		t.Logf("using external oxia at %s", addr)
		return addr
	}

	dir := t.TempDir()
	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(dir))
	if err != nil {
		t.Fatalf("start embedded oxia: %v", err)
	}
	t.Cleanup(func() {
		if err := standalone.Close(); err != nil {
			t.Logf("close embedded oxia: %v", err)
		}
	})
	return standalone.ServiceAddr()
}

// NewTestStore connects a Store to addr in the default namespace and closes
// it when t finishes.
func NewTestStore(t *testing.T, addr string) *Store {
	t.Helper()

	store, err := New(Config{
		ServiceAddress: addr,
		Namespace:      "default",
		SessionTimeout: minSessionTimeout,
	})
	if err != nil {
		t.Fatalf("connect to oxia: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
