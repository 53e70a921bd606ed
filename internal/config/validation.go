package config

import "fmt"

// Validate performs the same kind of field-by-field sanity pass the
// teacher's ValidateConfig runs before a node is allowed to start.
func Validate(c *Config) error {
	if c.RoutablePrefix == "" {
		return fmt.Errorf("routable_prefix must be set")
	}
	if c.McPrefix == "" {
		return fmt.Errorf("mc_prefix must be set")
	}
	if c.Frequency < 0 {
		return fmt.Errorf("frequency must be >= 0, got %v", c.Frequency)
	}
	if c.SyncFrequency < 0 {
		return fmt.Errorf("sync_frequency must be >= 0, got %v", c.SyncFrequency)
	}
	if c.EntropyThreshold <= 0 {
		return fmt.Errorf("entropy_threshold must be > 0, got %d", c.EntropyThreshold)
	}
	if c.ConEntropy <= 0 {
		return fmt.Errorf("con_entropy must be > 0, got %d", c.ConEntropy)
	}
	if c.MaxEntropy < c.ConEntropy {
		return fmt.Errorf("max_entropy (%d) must be >= con_entropy (%d)", c.MaxEntropy, c.ConEntropy)
	}
	if c.GenesisNum <= 0 {
		return fmt.Errorf("genesis_num must be > 0, got %d", c.GenesisNum)
	}
	if c.ReferredNum < 2 {
		return fmt.Errorf("referred_num must be >= 2, got %d", c.ReferredNum)
	}
	if err := validateRandomize("randomize", c.Randomize); err != nil {
		return err
	}
	if err := validateRandomize("sync_randomize", c.SyncRandomize); err != nil {
		return err
	}
	if c.Storage.LedgerPath == "" {
		return fmt.Errorf("storage.ledger_path must be set")
	}
	if c.Storage.HotCacheSize <= 0 {
		return fmt.Errorf("storage.hot_cache_size must be > 0, got %d", c.Storage.HotCacheSize)
	}
	return nil
}

func validateRandomize(field string, r Randomize) error {
	switch r {
	case RandomizeNone, RandomizeUniform, RandomizeExponential:
		return nil
	default:
		return fmt.Errorf("%s: unknown distribution %q (want none, uniform, or exponential)", field, r)
	}
}
