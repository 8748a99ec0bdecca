package config

import (
	"github.com/jcalabro/gc60"
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("limit", 1_000_000_000)
	v.SetDefault("segment_blocks", gc60.DefaultSegmentBlocks)
	v.SetDefault("parallel", false)

	// Zero means GOMAXPROCS workers and a budget of the available RAM.
	v.SetDefault("workers", 0)
	v.SetDefault("memory_limit", 0)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}
