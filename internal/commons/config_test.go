package commons

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "GZ", cfg.Order.IDPrefix)
	assert.Equal(t, "AED", cfg.Checkout.Currency)
	assert.Equal(t, 200.0, cfg.Checkout.FreeShippingThreshold)
	assert.Equal(t, 0.05, cfg.Checkout.TaxRate)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.VerifyTimeout)
	assert.Equal(t, 15*time.Second, cfg.Reconcile.SettleTimeout)
}

func TestLoadConfig_FileOverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
checkout:
  currency: USD
  freeShippingThreshold: 150
reconcile:
  verifyTimeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Checkout.Currency)
	assert.Equal(t, 150.0, cfg.Checkout.FreeShippingThreshold)
	assert.Equal(t, 3*time.Second, cfg.Reconcile.VerifyTimeout)
	assert.Equal(t, 25.0, cfg.Checkout.ShippingFee)
	assert.Equal(t, 3, cfg.Reconcile.PersistMaxAttempts)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkout: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}
