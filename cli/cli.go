// Package cli holds the kong command tree for the nextspeaker binary.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"go.ntppool.org/common/logger"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/selector"
	"go.nextspeaker.dev/nextspeaker/store"
	"go.nextspeaker.dev/nextspeaker/version"
)

func init() {
	logger.ConfigPrefix = "NEXTSPEAKER"
}

const appName = "nextspeaker"

// CLI is the root command. Global flags configure logging and the
// state store; subcommands get the parsed CLI bound as *CLI.
type CLI struct {
	Debug bool `help:"Enable debug logging, including per-candidate weights" env:"NEXTSPEAKER_DEBUG"`

	StateDir  string `name:"state-dir" help:"Directory for the state file (default: $NEXTSPEAKER_STATE_DIR, $STATE_DIRECTORY or the user config dir)"`
	Store     string `name:"store" default:"file" enum:"file,redis,mysql" env:"NEXTSPEAKER_STORE" help:"State backend (${enum})"`
	RedisAddr string `name:"redis-addr" default:"localhost:6379" env:"NEXTSPEAKER_REDIS_ADDR" help:"Redis address for --store=redis"`
	MySQLDSN  string `name:"mysql-dsn" env:"NEXTSPEAKER_MYSQL_DSN" help:"MySQL DSN for --store=mysql"`
	Namespace string `default:"nextspeaker" env:"NEXTSPEAKER_NAMESPACE" help:"Key prefix / namespace for shared backends"`

	ConnectTimeout time.Duration `name:"connect-timeout" default:"30s" help:"How long to retry connecting to a network backend"`

	Choose     ChooseCmd          `cmd:"" default:"withargs" help:"Choose the next speaker"`
	Simulate   SimulateCmd        `cmd:"" help:"Show how often each candidate would be chosen next"`
	Candidates CandidatesCmd      `cmd:"" help:"Show or replace the candidate list"`
	History    HistoryCmd         `cmd:"" help:"Show, clear or import the speaker history"`
	Halflife   HalflifeCmd        `cmd:"" help:"Show or set the history halflife"`
	Serve      ServeCmd           `cmd:"" help:"Run the HTTP API"`
	Version    version.VersionCmd `cmd:"" help:"Show version"`
}

// BeforeApply resolves the state directory from the environment
// when --state-dir wasn't given. Flags are applied after this runs, so
// the user config dir fallback is left to openStore.
func (cli *CLI) BeforeApply() error {
	if cli.StateDir != "" {
		return nil
	}

	if dir := os.Getenv("NEXTSPEAKER_STATE_DIR"); dir != "" {
		cli.StateDir = dir
		return nil
	}

	// systemd
	if dir := os.Getenv("STATE_DIRECTORY"); dir != "" {
		cli.StateDir = dir
	}
	return nil
}

func defaultStateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find a state directory, set --state-dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// AfterApply sets up the logger and makes the CLI available to the
// subcommands.
func (cli *CLI) AfterApply(kctx *kong.Context, ctx context.Context) error {
	var log *slog.Logger
	if cli.Debug {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		log = logger.Setup()
	}

	ctx = logger.NewContext(ctx, log)
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(cli)
	return nil
}

func (cli *CLI) storeConfig() (store.Config, error) {
	cfg := store.Config{
		Backend:        cli.Store,
		StateDir:       cli.StateDir,
		RedisAddr:      cli.RedisAddr,
		MySQLDSN:       cli.MySQLDSN,
		Namespace:      cli.Namespace,
		ConnectTimeout: cli.ConnectTimeout,
	}

	if cfg.StateDir == "" && (cfg.Backend == store.BackendFile || cfg.Backend == "") {
		dir, err := defaultStateDir()
		if err != nil {
			return store.Config{}, err
		}
		cfg.StateDir = dir
	}

	return cfg, nil
}

func (cli *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := cli.storeConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg)
}

// update loads the roster, applies fn and saves the result.
func (cli *CLI) update(ctx context.Context, fn func(r *roster.Roster) error) error {
	st, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := store.LoadOrNew(ctx, st)
	if err != nil {
		return err
	}
	if err := fn(&r); err != nil {
		return err
	}
	return st.Save(ctx, r)
}

func (cli *CLI) load(ctx context.Context) (roster.Roster, error) {
	st, err := cli.openStore(ctx)
	if err != nil {
		return roster.Roster{}, err
	}
	defer st.Close()
	return store.LoadOrNew(ctx, st)
}

func newSelector(ctx context.Context) *selector.Selector {
	return selector.New(selector.WithLogger(logger.FromContext(ctx)))
}
