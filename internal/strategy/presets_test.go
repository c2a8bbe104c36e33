package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePresets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRegistryLoadsActivePreset(t *testing.T) {
	path := writePresets(t, `
active: aggressive
presets:
  default:
    rsi_buy_threshold: 30
    rsi_sell_threshold: 70
  aggressive:
    rsi_buy_threshold: 35
    stochastic_buy_threshold: 25
`)
	fallback := Thresholds{RSIBuy: 30, RSISell: 70, StochBuy: 20, StochSell: 80}
	reg, err := NewRegistry(path, fallback)
	require.NoError(t, err)

	th := reg.Thresholds()
	assert.Equal(t, 35.0, th.RSIBuy)
	assert.Equal(t, 25.0, th.StochBuy)
	// 预设未填的键由兜底值补齐。
	assert.Equal(t, 70.0, th.RSISell)
	assert.Equal(t, 80.0, th.StochSell)
	assert.Equal(t, "aggressive", reg.Snapshot().Active)
}

func TestRegistryRejectsSchemaViolation(t *testing.T) {
	path := writePresets(t, `
presets:
  default:
    rsi_buy_threshold: 130
`)
	_, err := NewRegistry(path, Thresholds{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestRegistryRejectsUnknownActive(t *testing.T) {
	path := writePresets(t, `
active: missing
presets:
  default:
    rsi_buy_threshold: 30
`)
	_, err := NewRegistry(path, Thresholds{})
	require.Error(t, err)
}

func TestRegistryRejectsUnknownFields(t *testing.T) {
	path := writePresets(t, `
presets:
  default:
    rsi_threshold_typo: 30
`)
	_, err := NewRegistry(path, Thresholds{})
	require.Error(t, err)
}
