package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dlnode.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndFileOverrides(t *testing.T) {
	path := writeTempConfig(t, `
routable_prefix = "/dledger/node1"
referred_num = 3

[storage]
ledger_path = "/var/lib/dlnode/ledger"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dledger/node1", cfg.RoutablePrefix)
	assert.Equal(t, "/dledger", cfg.McPrefix, "mc_prefix should fall back to its default")
	assert.Equal(t, 3, cfg.ReferredNum, "file override should win over the default of 2")
	assert.Equal(t, 5, cfg.EntropyThreshold, "unset fields keep their default")
	assert.Equal(t, "/var/lib/dlnode/ledger", cfg.Storage.LedgerPath)
	assert.Equal(t, 4096, cfg.Storage.HotCacheSize)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	path := writeTempConfig(t, `
routable_prefix = "/dledger/node1"
`)
	t.Setenv("DLNODE_REFERRED_NUM", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ReferredNum)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, `
routable_prefix = "/dledger/node1"
referred_num = 1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCatchesEachBadField(t *testing.T) {
	base := func() *Config {
		return &Config{
			RoutablePrefix:   "/dledger/node1",
			McPrefix:         "/dledger",
			Frequency:        1,
			SyncFrequency:    1,
			EntropyThreshold: 5,
			ConEntropy:       15,
			MaxEntropy:       15,
			GenesisNum:       5,
			ReferredNum:      2,
			Randomize:        RandomizeNone,
			SyncRandomize:    RandomizeNone,
			Storage:          StorageConfig{LedgerPath: "./x", HotCacheSize: 1},
		}
	}

	require.NoError(t, Validate(base()))

	missingRoutable := base()
	missingRoutable.RoutablePrefix = ""
	assert.Error(t, Validate(missingRoutable))

	badMaxEntropy := base()
	badMaxEntropy.MaxEntropy = 1
	badMaxEntropy.ConEntropy = 15
	assert.Error(t, Validate(badMaxEntropy))

	badReferred := base()
	badReferred.ReferredNum = 1
	assert.Error(t, Validate(badReferred))

	badRandomize := base()
	badRandomize.Randomize = "chaotic"
	assert.Error(t, Validate(badRandomize))
}

func TestIsIdentityManager(t *testing.T) {
	cfg := &Config{RoutablePrefix: "/dledger/node1", IDManagerPrefix: "/dledger/node1"}
	assert.True(t, cfg.IsIdentityManager())

	cfg2 := &Config{RoutablePrefix: "/dledger/node1", IDManagerPrefix: "/dledger/node2"}
	assert.False(t, cfg2.IsIdentityManager())
}
