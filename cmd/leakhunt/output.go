package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flashbots/leakhunt/hunt"
)

// maxListedNames caps how many names a progress line spells out.
const maxListedNames = 8

// printer renders hunt output either as colored text or as tagged JSON lines
// for scripts.
type printer struct {
	w    io.Writer
	json bool
}

func (p printer) progress(pr hunt.Progress) {
	if p.json {
		p.tagged("PROGRESS", pr)
		return
	}

	colorCyan.Fprintf(p.w, "[%d/%d] ", pr.Step, pr.TotalEstimate)
	colorWhite.Fprintf(p.w, "%s", pr.Message)
	if len(pr.CandidateNames) > 0 {
		fmt.Fprintf(p.w, " (%s)", listNames(pr.CandidateNames))
	}
	if pr.Direction != hunt.DirectionNone {
		colorYellow.Fprintf(p.w, " -> %s, %d left", pr.Direction, pr.Remaining)
	}
	fmt.Fprintln(p.w)
}

func (p printer) result(res *hunt.LeakerResult) {
	if p.json {
		p.tagged("RESULT", res)
		return
	}

	if res == nil {
		colorYellow.Fprintln(p.w, "No leaker found: nobody forwarded the probe.")
		return
	}
	c := res.Candidate
	colorGreen.Fprintf(p.w, "Leaker: %s", c.Name())
	fmt.Fprintf(p.w, " (id %s, username %s)", c.ID, c.Username)
	if res.Confirmed {
		colorGreen.Fprintln(p.w, " [confirmed]")
	} else {
		colorYellow.Fprintln(p.w, " [not confirmed]")
	}
}

func (p printer) tagged(tag string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("null")
	}
	fmt.Fprintf(p.w, "%s:%s\n", tag, data)
}

func listNames(names []string) string {
	if len(names) <= maxListedNames {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:maxListedNames], ", "), len(names)-maxListedNames)
}
