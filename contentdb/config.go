package contentdb

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RadiusMode selects between the two radius-management strategies.
type RadiusMode int

const (
	// RadiusStatic fixes the radius at 2^LogRadius-1 for the node's lifetime;
	// no eviction, no radius updates, storageCapacity is advisory only.
	RadiusStatic RadiusMode = iota
	// RadiusDynamic lets the radius shrink in response to eviction; its
	// initial value is derived from configuration and database state.
	RadiusDynamic
)

// MarshalText renders the mode the way a config file names it, matching
// go-ethereum's own enum-over-TOML convention (e.g. downloader.SyncMode).
func (m RadiusMode) MarshalText() ([]byte, error) {
	switch m {
	case RadiusStatic:
		return []byte("static"), nil
	case RadiusDynamic:
		return []byte("dynamic"), nil
	default:
		return nil, fmt.Errorf("contentdb: unknown radius mode %d", m)
	}
}

// UnmarshalText parses "static" or "dynamic" from a config file. A
// radiusConfig table omitted entirely from the file leaves Mode at its Go
// zero value (RadiusStatic, LogRadius 0 — radius fixed at 0, never evicts);
// callers that want Dynamic mode must say so explicitly.
func (m *RadiusMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "static":
		*m = RadiusStatic
	case "dynamic":
		*m = RadiusDynamic
	default:
		return fmt.Errorf("contentdb: unknown radius mode %q", text)
	}
	return nil
}

// RadiusConfig is the tagged union Static{LogRadius} | Dynamic,
// decoded from TOML via the Mode discriminator — go-ethereum's own
// eth/ethconfig package layers enums over TOML config the same way.
type RadiusConfig struct {
	Mode RadiusMode `toml:"mode"`
	// LogRadius is only meaningful when Mode == RadiusStatic. Radius is then
	// fixed at 2^LogRadius - 1; LogRadius == 256 means "never evict" (radius
	// is all-ones).
	LogRadius uint16 `toml:"logRadius"`
}

// StaticRadius builds a RadiusConfig fixed at 2^logRadius - 1.
func StaticRadius(logRadius uint16) RadiusConfig {
	return RadiusConfig{Mode: RadiusStatic, LogRadius: logRadius}
}

// DynamicRadius builds a RadiusConfig whose radius adapts to storage
// pressure.
func DynamicRadius() RadiusConfig {
	return RadiusConfig{Mode: RadiusDynamic}
}

// Config gathers the external configuration parameters for a ContentDB.
type Config struct {
	// Path is the on-disk file for the store. Empty means in-memory.
	Path string `toml:"path"`
	// StorageCapacity is the target used-bytes upper bound, in bytes, that
	// drives eviction in Dynamic mode. Advisory (never triggers eviction) in
	// Static mode. Must be <= math.MaxInt64.
	StorageCapacity uint64 `toml:"storageCapacity"`
	// Radius selects Static or Dynamic radius management.
	Radius RadiusConfig `toml:"radiusConfig"`
	// LocalId is this node's 256-bit identifier, the XOR-distance origin.
	LocalId LocalId `toml:"localId"`
	// InMemory forces an in-memory database even when Path is set, mainly
	// for tests.
	InMemory bool `toml:"inMemory"`
	// ManualCheckpoint turns off SQLite's automatic WAL checkpoint (file-backed
	// stores always use WAL) and makes ForcePrune truncate the WAL after its
	// vacuum, so a maintenance window can batch a force-prune with a WAL
	// truncate.
	ManualCheckpoint bool `toml:"manualCheckpoint"`
	// ProtocolID labels the two metrics exposed to the surrounding process
	// Defaults to "history" when empty.
	ProtocolID string `toml:"protocolId"`
}

// SetDefaults fills in the defaults for fields left unset by a TOML file, or
// by a caller constructing Config by hand — go-ethereum's own config structs
// (eth.Config, node.Config) carry the same kind of SetDefaults method,
// called once before the config is handed to a constructor.
func (c *Config) SetDefaults() {
	if c.ProtocolID == "" {
		c.ProtocolID = "history"
	}
}

// LoadConfig reads and TOML-decodes the config file at path, applying
// SetDefaults to the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("contentdb: decode config %s: %w", path, err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// dynamicFullThreshold is the "near full" cutoff past which the initial
// Dynamic radius is set to the current largest stored distance rather than
// the maximum possible radius.
const dynamicFullThreshold = 0.95

// evictionFraction is the fixed fractional eviction target of the write path.
const evictionFraction = 0.05
