// Command contentdb-tool is an offline maintenance utility for a Portal
// History Network content database: it reports statistics, force-prunes
// content outside the configured radius, and reclaims disk space, all
// while the owning node is stopped.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/portalnetwork/contentdb/contentdb"
	"github.com/portalnetwork/contentdb/log"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML config file; explicit flags below override its fields",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "data.dir",
		Usage: "content database file (required unless --config sets path)",
	}
	capacityFlag = &cli.Uint64Flag{
		Name:  "data.capacity",
		Usage: "storage capacity in bytes, used by the force-prune command",
		Value: 10 * 1000 * 1000 * 1000,
	}
	logRadiusFlag = &cli.UintFlag{
		Name:  "radius.log",
		Usage: "log2 of the static radius (256 = unbounded); ignored unless radius.mode=static",
		Value: 256,
	}
	radiusModeFlag = &cli.StringFlag{
		Name:  "radius.mode",
		Usage: "radius management mode: static or dynamic",
		Value: "dynamic",
	}
	localIdFlag = &cli.StringFlag{
		Name:  "local.id",
		Usage: "the node's 32-byte id, hex encoded, used as the XOR-distance origin",
	}
	manualCheckpointFlag = &cli.BoolFlag{
		Name:  "wal.manual-checkpoint",
		Usage: "open the store with application-driven WAL checkpointing",
	}
	contentIdFlag = &cli.StringFlag{
		Name:     "content.id",
		Usage:    "32-byte content id, hex encoded, to look up",
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:  "contentdb-tool",
		Usage: "inspect and maintain a Portal History Network content database",
		Commands: []*cli.Command{
			statsCommand,
			forcePruneCommand,
			vacuumCommand,
			getCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Root().Crit("contentdb-tool: " + err.Error())
	}
}

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "print size, content, and radius statistics for a database",
	Flags:  []cli.Flag{configFlag, dataDirFlag, localIdFlag},
	Action: runStats,
}

var forcePruneCommand = &cli.Command{
	Name:  "force-prune",
	Usage: "delete everything outside the configured radius and reclaim space",
	Flags: []cli.Flag{
		configFlag, dataDirFlag, capacityFlag, radiusModeFlag, logRadiusFlag, localIdFlag, manualCheckpointFlag,
	},
	Action: runForcePrune,
}

var vacuumCommand = &cli.Command{
	Name:   "vacuum",
	Usage:  "repack the database file, releasing free pages back to the OS",
	Flags:  []cli.Flag{configFlag, dataDirFlag},
	Action: runVacuum,
}

var getCommand = &cli.Command{
	Name:   "get",
	Usage:  "print the value stored for a content id, or report it absent",
	Flags:  []cli.Flag{configFlag, dataDirFlag, localIdFlag, contentIdFlag},
	Action: runGet,
}

// loadBaseConfig builds the starting Config for a command: from --config's
// TOML file when given, otherwise a defaulted zero value — Radius defaults
// to Dynamic here (matching radiusModeFlag's own "dynamic" default) since
// Config's zero value would otherwise be Static{LogRadius:0}, a degenerate
// never-matches radius unsuited as a flag-driven default. The bool reports
// whether a config file was actually loaded, so callers know whether a
// flag's bare default value should still apply (see applyFlag).
func loadBaseConfig(ctx *cli.Context) (contentdb.Config, bool, error) {
	if path := ctx.String(configFlag.Name); path != "" {
		cfg, err := contentdb.LoadConfig(path)
		if err != nil {
			return contentdb.Config{}, false, err
		}
		return cfg, true, nil
	}
	var cfg contentdb.Config
	cfg.Radius = contentdb.DynamicRadius()
	cfg.SetDefaults()
	return cfg, false, nil
}

// applyFlag reports whether a command should apply flagName's CLI value on
// top of a Config already built by loadBaseConfig: always when the user
// explicitly passed it, and also when no --config file was loaded at all
// (so a flag's declared Value default still takes effect, matching this
// tool's pre-TOML-support behavior).
func applyFlag(ctx *cli.Context, usedConfigFile bool, flagName string) bool {
	return ctx.IsSet(flagName) || !usedConfigFile
}

// withLockedDB acquires an exclusive lock on the sidecar file
// cfg.Path+".tool.lock" (so two tool runs never open the same database at
// once; ContentDB.Open takes no lock, so a running node is not excluded by
// it), opens the database per cfg, runs fn, and always closes the database
// and releases the lock afterward.
func withLockedDB(cfg contentdb.Config, fn func(*contentdb.ContentDB) error) error {
	lockPath := cfg.Path + ".tool.lock"
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("contentdb-tool: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("contentdb-tool: %s is locked by another process", cfg.Path)
	}
	defer fl.Unlock()

	db, err := contentdb.Open(cfg)
	if err != nil {
		return fmt.Errorf("contentdb-tool: open: %w", err)
	}
	defer db.Close()

	return fn(db)
}

// parseLocalId decodes a hex local-id flag via LocalId's own
// UnmarshalText, so the CLI and TOML config decoding paths agree on syntax
// (optional "0x" prefix, exactly 32 bytes).
func parseLocalId(s string) (contentdb.LocalId, error) {
	var id contentdb.LocalId
	if s == "" {
		return id, nil
	}
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return id, fmt.Errorf("invalid local.id: %w", err)
	}
	return id, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// requireDataDir validates that cfg ended up with a usable path: either
// --config supplied one, or --data.dir did.
func requireDataDir(cfg contentdb.Config) error {
	if cfg.Path == "" && !cfg.InMemory {
		return fmt.Errorf("contentdb-tool: --data.dir or a --config file with path set is required")
	}
	return nil
}

func runStats(ctx *cli.Context) error {
	cfg, _, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Path = filepath.Clean(ctx.String(dataDirFlag.Name))
	}
	if ctx.IsSet(localIdFlag.Name) {
		localId, err := parseLocalId(ctx.String(localIdFlag.Name))
		if err != nil {
			return err
		}
		cfg.LocalId = localId
	}
	if err := requireDataDir(cfg); err != nil {
		return err
	}
	return withLockedDB(cfg, func(db *contentdb.ContentDB) error {
		snap := db.Statistics().TakeSnapshot()
		fmt.Printf("size          %d bytes\n", snap.Size)
		fmt.Printf("unused        %d bytes\n", snap.UnusedSize)
		fmt.Printf("used          %d bytes\n", snap.UsedSize)
		fmt.Printf("content size  %d bytes\n", snap.ContentSize)
		fmt.Printf("content count %d\n", snap.ContentCount)
		fmt.Printf("radius        %s\n", db.Radius().Current().Hex())
		return nil
	})
}

func runForcePrune(ctx *cli.Context) error {
	cfg, usedConfigFile, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Path = filepath.Clean(ctx.String(dataDirFlag.Name))
	}
	if applyFlag(ctx, usedConfigFile, capacityFlag.Name) {
		cfg.StorageCapacity = ctx.Uint64(capacityFlag.Name)
	}
	if applyFlag(ctx, usedConfigFile, radiusModeFlag.Name) {
		if ctx.String(radiusModeFlag.Name) == "static" {
			cfg.Radius = contentdb.StaticRadius(uint16(ctx.Uint(logRadiusFlag.Name)))
		} else {
			cfg.Radius = contentdb.DynamicRadius()
		}
	}
	if ctx.IsSet(localIdFlag.Name) {
		localId, err := parseLocalId(ctx.String(localIdFlag.Name))
		if err != nil {
			return err
		}
		cfg.LocalId = localId
	}
	if ctx.IsSet(manualCheckpointFlag.Name) {
		cfg.ManualCheckpoint = ctx.Bool(manualCheckpointFlag.Name)
	}
	if err := requireDataDir(cfg); err != nil {
		return err
	}
	return withLockedDB(cfg, func(db *contentdb.ContentDB) error {
		before := db.Statistics().ContentCount()
		db.ForcePrune()
		after := db.Statistics().ContentCount()
		fmt.Printf("content count %d -> %d\n", before, after)
		return nil
	})
}

func runVacuum(ctx *cli.Context) error {
	cfg, _, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Path = filepath.Clean(ctx.String(dataDirFlag.Name))
	}
	if err := requireDataDir(cfg); err != nil {
		return err
	}
	return withLockedDB(cfg, func(db *contentdb.ContentDB) error {
		before := db.Statistics().Size()
		db.Vacuum()
		after := db.Statistics().Size()
		fmt.Printf("size %d -> %d bytes\n", before, after)
		return nil
	})
}

// runGet exercises ContentDB.GetOrErr's error-based contract (as opposed to
// GetHandler's bool), printing the hex-encoded value or reporting
// contentdb.ErrNotFound.
func runGet(ctx *cli.Context) error {
	cfg, _, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Path = filepath.Clean(ctx.String(dataDirFlag.Name))
	}
	if ctx.IsSet(localIdFlag.Name) {
		localId, err := parseLocalId(ctx.String(localIdFlag.Name))
		if err != nil {
			return err
		}
		cfg.LocalId = localId
	}
	if err := requireDataDir(cfg); err != nil {
		return err
	}

	var contentId contentdb.ContentId
	idBytes, err := hex.DecodeString(trimHexPrefix(ctx.String(contentIdFlag.Name)))
	if err != nil || len(idBytes) != 32 {
		return fmt.Errorf("contentdb-tool: content.id must be 32 bytes hex, got %q", ctx.String(contentIdFlag.Name))
	}
	copy(contentId[:], idBytes)

	return withLockedDB(cfg, func(db *contentdb.ContentDB) error {
		value, err := db.GetOrErr(contentId)
		if err == contentdb.ErrNotFound {
			fmt.Println("not found")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(value))
		return nil
	})
}
