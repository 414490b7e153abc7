package store

import (
	"fmt"
	"io"
	"os"

	"go.nextspeaker.dev/nextspeaker/roster"
)

// ReadLines reads a newline delimited list of names.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return roster.ParseLines(string(b)), nil
}

// ImportText builds a roster from a participants file and an optional
// history file.
func ImportText(participantsPath, historyPath string, halflife float64) (roster.Roster, error) {
	r := roster.Roster{Halflife: halflife}

	var err error
	r.Candidates, err = ReadLines(participantsPath)
	if err != nil {
		return roster.Roster{}, err
	}

	if historyPath != "" {
		r.History, err = ReadLines(historyPath)
		if err != nil {
			return roster.Roster{}, err
		}
	}

	return r, nil
}

// AppendHistoryText adds name as the last line of a history file,
// creating it if needed.
func AppendHistoryText(path, name string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	sep := ""
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, st.Size()-1); err != nil && err != io.EOF {
			return err
		}
		if last[0] != '\n' {
			sep = "\n"
		}
	}

	if _, err := f.WriteString(sep + name + "\n"); err != nil {
		return err
	}
	return f.Close()
}
