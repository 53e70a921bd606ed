package config

import "github.com/spf13/viper"

// setDefaults mirrors spec.md §6's defaults table, the way the teacher's
// setDefaults seeds rippled's own values before any file or env override
// is applied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("frequency", 1.0)
	v.SetDefault("sync_frequency", 1.0)
	v.SetDefault("entropy_threshold", 5)
	v.SetDefault("con_entropy", 15)
	v.SetDefault("max_entropy", 15)
	v.SetDefault("genesis_num", 5)
	v.SetDefault("referred_num", 2)
	v.SetDefault("mc_prefix", "/dledger")
	v.SetDefault("randomize", string(RandomizeNone))
	v.SetDefault("sync_randomize", string(RandomizeNone))

	v.SetDefault("storage.hot_cache_size", 4096)
	v.SetDefault("storage.ledger_path", "./data/ledger")
	v.SetDefault("storage.archival_index_path", "./data/archival.sqlite")

	v.SetDefault("transport.listen_addr", "0.0.0.0:7700")
	v.SetDefault("transport.prefer_v2", true)

	v.SetDefault("admin.listen_addr", "127.0.0.1:7701")
	v.SetDefault("metrics.listen_addr", "127.0.0.1:7702")

	v.SetDefault("log_level", "info")
}
