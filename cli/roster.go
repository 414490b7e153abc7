package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/store"
)

type CandidatesCmd struct {
	Show showCandidatesCmd `cmd:"" default:"1" help:"Print the candidates, one per line"`
	Set  setCandidatesCmd  `cmd:"" help:"Replace the candidates with the names in FILE"`
}

type showCandidatesCmd struct{}

func (cmd *showCandidatesCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	r, err := cli.load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(kctx.Stdout, roster.FormatLines(r.Candidates))
	return nil
}

type setCandidatesCmd struct {
	File string `arg:"" type:"existingfile" help:"Newline delimited list of candidates"`
}

func (cmd *setCandidatesCmd) Run(ctx context.Context, cli *CLI) error {
	names, err := store.ReadLines(cmd.File)
	if err != nil {
		return err
	}
	return cli.update(ctx, func(r *roster.Roster) error {
		r.Candidates = names
		return nil
	})
}

type HistoryCmd struct {
	Show   showHistoryCmd   `cmd:"" default:"1" help:"Print the history, oldest first"`
	Clear  clearHistoryCmd  `cmd:"" help:"Forget all past choices"`
	Import importHistoryCmd `cmd:"" help:"Replace the history with the names in FILE"`
}

type showHistoryCmd struct{}

func (cmd *showHistoryCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	r, err := cli.load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(kctx.Stdout, roster.FormatLines(r.History))
	return nil
}

type clearHistoryCmd struct{}

func (cmd *clearHistoryCmd) Run(ctx context.Context, cli *CLI) error {
	return cli.update(ctx, func(r *roster.Roster) error {
		r.History = nil
		return nil
	})
}

type importHistoryCmd struct {
	File string `arg:"" type:"existingfile" help:"Newline delimited history, oldest first"`
}

func (cmd *importHistoryCmd) Run(ctx context.Context, cli *CLI) error {
	names, err := store.ReadLines(cmd.File)
	if err != nil {
		return err
	}
	return cli.update(ctx, func(r *roster.Roster) error {
		r.History = names
		return nil
	})
}

type HalflifeCmd struct {
	Show showHalflifeCmd `cmd:"" default:"1" help:"Print the halflife"`
	Set  setHalflifeCmd  `cmd:"" help:"Set the halflife, in history positions (e.g. 10 or 3/2)"`
}

type showHalflifeCmd struct{}

func (cmd *showHalflifeCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	r, err := cli.load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(kctx.Stdout, "%g\n", r.Halflife)
	return nil
}

type setHalflifeCmd struct {
	Value string `arg:"" help:"Positive halflife"`
}

func (cmd *setHalflifeCmd) Run(ctx context.Context, cli *CLI) error {
	h, err := roster.ParseHalflife(cmd.Value)
	if err != nil {
		return err
	}
	return cli.update(ctx, func(r *roster.Roster) error {
		r.Halflife = h
		return nil
	})
}
