package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kong"
	"go.ntppool.org/common/logger"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/selector"
	"go.nextspeaker.dev/nextspeaker/store"
)

type ChooseCmd struct {
	Participants string `type:"existingfile" placeholder:"FILE" help:"Newline delimited list of candidates (instead of the stored state)"`
	HistoryFile  string `name:"history" type:"path" placeholder:"FILE" help:"Newline delimited history, oldest first (with --participants)"`
	Halflife     string `placeholder:"N" help:"Override the history halflife, e.g. 10 or 3/2"`
	Record       bool   `help:"Append the chosen speaker to the history"`
}

func (cmd *ChooseCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	if cmd.Participants != "" {
		return cmd.fromFiles(ctx, kctx)
	}
	if cmd.HistoryFile != "" {
		return errors.New("--history requires --participants")
	}
	return cmd.fromStore(ctx, kctx, cli)
}

func (cmd *ChooseCmd) halflife(stored float64) (float64, error) {
	if cmd.Halflife == "" {
		return stored, nil
	}
	return roster.ParseHalflife(cmd.Halflife)
}

func (cmd *ChooseCmd) fromFiles(ctx context.Context, kctx *kong.Context) error {
	if cmd.Record && cmd.HistoryFile == "" {
		return errors.New("--record requires --history")
	}

	h, err := cmd.halflife(selector.DefaultHalflife)
	if err != nil {
		return err
	}

	r, err := store.ImportText(cmd.Participants, cmd.HistoryFile, h)
	if err != nil {
		return err
	}
	name, err := choose(ctx, r)
	if err != nil {
		return err
	}

	if cmd.Record {
		if err := store.AppendHistoryText(cmd.HistoryFile, name); err != nil {
			return fmt.Errorf("recording %s: %w", name, err)
		}
	}

	fmt.Fprintln(kctx.Stdout, name)
	return nil
}

func (cmd *ChooseCmd) fromStore(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	st, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := store.LoadOrNew(ctx, st)
	if err != nil {
		return err
	}
	r.Halflife, err = cmd.halflife(r.Halflife)
	if err != nil {
		return err
	}

	name, err := choose(ctx, r)
	if err != nil {
		return err
	}

	if cmd.Record {
		if err := store.Record(ctx, st, name); err != nil {
			return fmt.Errorf("recording %s: %w", name, err)
		}
	}

	fmt.Fprintln(kctx.Stdout, name)
	return nil
}

func choose(ctx context.Context, r roster.Roster) (string, error) {
	candidates, history, halflife, err := r.Eligible()
	if err != nil {
		return "", err
	}

	logger.FromContext(ctx).DebugContext(ctx, "choosing",
		"candidates", len(candidates), "history", len(history), "halflife", halflife)

	name, err := newSelector(ctx).Choose(ctx, candidates, history, halflife)
	if err != nil {
		return "", fmt.Errorf("choosing participant: %w", err)
	}
	return name, nil
}
