package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/alecthomas/kong"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/simulate"
	"go.nextspeaker.dev/nextspeaker/store"
)

const barWidth = 40

type SimulateCmd struct {
	Runs         int    `name:"runs" short:"n" default:"1000" help:"Number of simulated choices"`
	Workers      int    `default:"0" help:"Parallel workers (0 for one per CPU)"`
	Participants string `type:"existingfile" placeholder:"FILE" help:"Newline delimited list of candidates (instead of the stored state)"`
	HistoryFile  string `name:"history" type:"path" placeholder:"FILE" help:"Newline delimited history (with --participants)"`
}

func (cmd *SimulateCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	var (
		r   roster.Roster
		err error
	)
	if cmd.Participants != "" {
		r, err = store.ImportText(cmd.Participants, cmd.HistoryFile, roster.New().Halflife)
	} else {
		r, err = cli.load(ctx)
	}
	if err != nil {
		return err
	}

	results, err := simulate.Run(ctx, newSelector(ctx), r, simulate.Options{
		Runs:    cmd.Runs,
		Workers: cmd.Workers,
	})
	if err != nil {
		return err
	}

	writeReport(kctx.Stdout, r, results)
	return nil
}

func writeReport(w io.Writer, r roster.Roster, results simulate.Results) {
	fmt.Fprint(w, heredoc.Docf(`
		Simulation of next choice
		  runs:       %d
		  candidates: %d
		  history:    %d
		  halflife:   %g

	`, results.Total(), len(r.Candidates), len(r.History), r.Halflife))

	width := 0
	for _, t := range results {
		width = max(width, len(t.Name))
	}

	for _, t := range results {
		pct := 100 * results.Fraction(t.Name)
		bar := strings.Repeat("#", int(pct/100*barWidth+0.5))
		fmt.Fprintf(w, "%-*s %6.2f%% %s\n", width, t.Name, pct, bar)
	}
}
