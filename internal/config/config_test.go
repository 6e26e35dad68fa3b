package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsApply(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, int64(10*1024*1024), cfg.Intake.MaxDocumentBytes)
	assert.Equal(t, 5*time.Second, cfg.Sourcing.PerVendorTimeout)
	assert.Equal(t, 60*time.Second, cfg.Sourcing.DocumentBudget)
	assert.InDelta(t, 1500.0, cfg.Sourcing.ApprovalThresholdAmount, 0.001)
	assert.InDelta(t, 0.4, cfg.Sourcing.ScoreWeights.Price, 0.001)
	assert.Equal(t, 1, cfg.Batch.FileConcurrency)
	assert.Equal(t, 100, cfg.Batch.MaxBatchFiles)
	assert.True(t, cfg.Sourcing.EnableAutomatedSourcing)
}

func TestLoad_FullSourcingSection(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `
sourcing:
  enable_automated_sourcing: true
  per_vendor_timeout: 2s
  document_budget: 20s
  approval_threshold_amount: 800
  preferred_vendors: [oem-direct, lkq-midwest]
  score_weights:
    price: 0.5
    reliability: 0.3
    lead_time: 0.1
    preference: 0.1
  vendor_reliability:
    oem-direct: 0.9
  vendors:
    - id: oem-direct
      endpoint: http://vendors.internal/oem/quote
    - id: lkq-midwest
      endpoint: http://vendors.internal/lkq/quote
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Sourcing.PerVendorTimeout)
	assert.Equal(t, []string{"oem-direct", "lkq-midwest"}, cfg.Sourcing.PreferredVendors)
	assert.InDelta(t, 0.9, cfg.Sourcing.VendorReliability["oem-direct"], 0.001)
	require.Len(t, cfg.Sourcing.Vendors, 2)
	assert.Equal(t, "oem-direct", cfg.Sourcing.Vendors[0].ID)
	assert.InDelta(t, 0.5, cfg.Sourcing.ScoreWeights.Price, 0.001)
}

func TestLoad_InvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"budget below vendor timeout", "sourcing:\n  per_vendor_timeout: 10s\n  document_budget: 5s\n"},
		{"vendor without endpoint", "sourcing:\n  vendors:\n    - id: oem-direct\n"},
		{"negative markup", "sourcing:\n  base_markup_fraction: -0.1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
