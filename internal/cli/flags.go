package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagLoader reads configuration with CLI flag precedence.
// An explicitly set flag wins; otherwise viper's order applies: env > config file > default.
type FlagLoader struct {
	cmd *cobra.Command
	v   *viper.Viper
}

// NewFlagLoader creates a FlagLoader for cmd backed by v.
func NewFlagLoader(cmd *cobra.Command, v *viper.Viper) *FlagLoader {
	return &FlagLoader{cmd: cmd, v: v}
}

// String returns the flag value if explicitly set, otherwise the viper value.
func (f *FlagLoader) String(name string) string {
	if f.cmd.Flags().Changed(name) {
		val, _ := f.cmd.Flags().GetString(name)
		return val
	}
	return f.v.GetString(name)
}

// Int returns the flag value if explicitly set, otherwise the viper value.
func (f *FlagLoader) Int(name string) int {
	if f.cmd.Flags().Changed(name) {
		val, _ := f.cmd.Flags().GetInt(name)
		return val
	}
	return f.v.GetInt(name)
}

// Float64 returns the flag value if explicitly set, otherwise the viper value.
func (f *FlagLoader) Float64(name string) float64 {
	if f.cmd.Flags().Changed(name) {
		val, _ := f.cmd.Flags().GetFloat64(name)
		return val
	}
	return f.v.GetFloat64(name)
}

// Bool returns the flag value if explicitly set, otherwise the viper value.
func (f *FlagLoader) Bool(name string) bool {
	if f.cmd.Flags().Changed(name) {
		val, _ := f.cmd.Flags().GetBool(name)
		return val
	}
	return f.v.GetBool(name)
}

// Duration returns the flag value if explicitly set, otherwise the viper value.
func (f *FlagLoader) Duration(name string) time.Duration {
	if f.cmd.Flags().Changed(name) {
		val, _ := f.cmd.Flags().GetDuration(name)
		return val
	}
	return f.v.GetDuration(name)
}
