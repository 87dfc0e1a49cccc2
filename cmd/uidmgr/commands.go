package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/uidmgr/internal/config"
	"github.com/standardbeagle/uidmgr/internal/debug"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/repository"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

func keyArg(c *cli.Context) (keys.Key, error) {
	if c.NArg() != 1 {
		return keys.Key{}, fmt.Errorf("expected exactly one key argument")
	}
	return keys.Parse(c.Args().First())
}

// decodeCommand prints the fields of a key
func decodeCommand(c *cli.Context) error {
	k, err := keyArg(c)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "unit:  %d\n", k.Unit)
	fmt.Fprintf(w, "kind:  %s\n", k.Kind)
	fmt.Fprintf(w, "file:  %d\n", k.File)
	fmt.Fprintf(w, "span:  %d-%d\n", k.Start, k.End)
	fmt.Fprintf(w, "name:  %s\n", k.Name)
	fmt.Fprintf(w, "hash:  %016x\n", k.Hash())
	return nil
}

// putCommand stores a record and prints its key
func putCommand(c *cli.Context) error {
	kind, err := keys.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	s, err := openServices(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireSQLite("put"); err != nil {
		return err
	}

	k := keys.Key{
		Unit:  uint32(c.Uint("unit")),
		Kind:  kind,
		File:  uint32(c.Uint("file")),
		Start: uint32(c.Uint("start")),
		End:   uint32(c.Uint("end")),
		Name:  c.String("name"),
	}
	r, err := repository.NewRecord(s.manager, k, k.Name)
	if err != nil {
		return err
	}
	r.Text = c.String("text")
	if err := s.repo.Put(c.Context, r); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, k.String())
	return nil
}

// getCommand resolves a key through the provider
func getCommand(c *cli.Context) error {
	k, err := keyArg(c)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		// keep the output stream machine-readable
		prev := debug.QuietMode
		debug.SetQuietMode(true)
		defer debug.SetQuietMode(prev)
	}
	s, err := openServices(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireSQLite("get"); err != nil {
		return err
	}

	u, err := s.manager.SharedKeyUID(k)
	if err != nil {
		return err
	}
	v, err := s.provider.Resolve(c.Context, u)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("no entity under %s", k)
	}
	r := v.(*repository.Record)

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Key string `json:"key"`
			*repository.Record
		}{k.String(), r})
	}
	fmt.Fprintf(c.App.Writer, "%s %s [%d-%d] %s\n", k.Kind, r.Name, r.StartOffset(), r.EndOffset(), r.Text)
	return nil
}

// dropCommand removes a unit from the repository and clears its cached entities
func dropCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one unit argument")
	}
	unit, err := strconv.ParseUint(c.Args().First(), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid unit %q: %w", c.Args().First(), err)
	}
	s, err := openServices(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireSQLite("drop"); err != nil {
		return err
	}

	n, err := s.repo.DropPartition(c.Context, uint32(unit))
	if err != nil {
		return err
	}
	s.manager.ClearPartition(int(unit))
	fmt.Fprintf(c.App.Writer, "dropped %d entities of unit %d\n", n, unit)
	return nil
}

// errNotCanonical reports two distinct instances returned for equal keys
var errNotCanonical = errors.New("interning returned distinct instances for equal keys")

// benchCommand interns the same key set from several workers and checks that
// every worker receives the same instance for each key
func benchCommand(c *cli.Context) error {
	workers, nkeys, rounds := c.Int("workers"), c.Int("keys"), c.Int("rounds")
	if workers <= 0 || nkeys <= 0 || rounds <= 0 {
		return fmt.Errorf("workers, keys and rounds must be positive")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	store, err := uid.NewStore(cfg.StoreConfig(keys.Partition))
	if err != nil {
		return err
	}
	m := uid.NewManager(store, cfg.ManagerOptions()...)

	canonical := make([]atomic.Pointer[uid.UID], nkeys)
	start := time.Now()

	g, ctx := errgroup.WithContext(c.Context)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				for i := 0; i < nkeys; i++ {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					u, err := m.SharedKeyUID(benchKey(i))
					if err != nil {
						return err
					}
					if !canonical[i].CompareAndSwap(nil, u) && canonical[i].Load() != u {
						return fmt.Errorf("key %d: %w", i, errNotCanonical)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	stats := m.Stats()
	ops := workers * nkeys * rounds
	w := c.App.Writer
	fmt.Fprintf(w, "interned %d keys from %d workers in %v (%.0f ops/s)\n", nkeys, workers, elapsed, float64(ops)/elapsed.Seconds())
	fmt.Fprintf(w, "shards=%d resident=%d interned=%d hits=%d swept=%d\n",
		stats.Shards, stats.Resident, stats.Interned, stats.Hits, stats.Swept)
	return nil
}

func benchKey(i int) keys.Key {
	return keys.Key{
		Unit:  uint32(i % 16),
		Kind:  keys.KindFunction,
		File:  uint32(i / 16),
		Start: uint32(i),
		End:   uint32(i + 1),
	}
}

// watchCommand clears cached entities of partitions whose index files change
func watchCommand(c *cli.Context) error {
	s, err := openServices(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	dir := s.cfg.Repository.WatchDir
	if dir == "" {
		return fmt.Errorf("repository.watch_dir is not configured")
	}
	debounce := time.Duration(s.cfg.Repository.WatchDebounceMs) * time.Millisecond
	pw, err := repository.NewPartitionWatcher(dir, debounce, func(unit uint32) {
		n := s.manager.ClearPartition(int(unit))
		fmt.Fprintf(c.App.Writer, "unit %d changed, cleared %d handles\n", unit, n)
	})
	if err != nil {
		return err
	}
	if err := pw.Start(); err != nil {
		return err
	}
	defer func() { _ = pw.Stop() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(c.App.Writer, "watching %s (%s driver)\n", dir, driverName(s.cfg))
	<-ctx.Done()
	return nil
}

func driverName(cfg *config.Config) string {
	if cfg.Repository.Driver == "" {
		return config.DriverMemory
	}
	return cfg.Repository.Driver
}
