package main

import (
	"github.com/MakeNowJust/heredoc"

	"go.nextspeaker.dev/nextspeaker/cli"
	rootcmd "go.nextspeaker.dev/nextspeaker/cmd"
)

func main() {
	rootcmd.Run(&cli.CLI{}, "nextspeaker", heredoc.Doc(`
		Choose who speaks next.

		Candidates who spoke recently are less likely to be chosen, and
		the most recent speakers are never chosen.
	`))
}
