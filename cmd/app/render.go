package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/tracker"
)

var (
	headerColor  = color.New(color.Bold)
	todayColor   = color.New(color.FgHiMagenta, color.Bold)
	fullColor    = color.New(color.FgGreen)
	partialColor = color.New(color.FgYellow)
	noneColor    = color.New(color.FgRed)
	emptyColor   = color.New(color.Faint)
)

// renderStatus prints metrics as rows and active days as columns.
func renderStatus(w io.Writer, st tracker.State) {
	if len(st.Entries) == 0 {
		fmt.Fprintln(w, "No entries")
		return
	}

	fmt.Fprintf(w, "%s\n\n", headerColor.Sprint(st.Label))

	width := 0
	for _, cat := range st.Settings.Config {
		for _, m := range cat.Metrics {
			width = max(width, utf8.RuneCountInString(m.Label))
		}
	}

	header := strings.Repeat(" ", width+2)
	for _, e := range st.Entries {
		col := e.Date[len(e.Date)-2:]
		if e.Date == st.Today {
			col = todayColor.Sprint(col)
		}
		header += " " + col
	}
	fmt.Fprintln(w, header)

	for _, cat := range st.Settings.Config {
		fmt.Fprintln(w, headerColor.Sprint(cat.Category))
		for _, m := range cat.Metrics {
			row := "  " + m.Label + strings.Repeat(" ", width-utf8.RuneCountInString(m.Label))
			for _, e := range st.Entries {
				row += "  " + scoreCell(e.Scores, m.ID)
			}
			fmt.Fprintln(w, row)
		}
	}

	for _, e := range st.Entries {
		if e.Notes != "" {
			fmt.Fprintf(w, "\n%s  %s", e.Date, strings.ReplaceAll(e.Notes, "\n", " "))
		}
	}
	fmt.Fprintln(w)
}

func scoreCell(scores models.Scores, metricID string) string {
	v, ok := scores.Lookup(metricID)
	if !ok {
		return emptyColor.Sprint("·")
	}
	switch v {
	case models.ScoreFull:
		return fullColor.Sprint(v.String())
	case models.ScorePartial:
		return partialColor.Sprint(v.String())
	default:
		return noneColor.Sprint(v.String())
	}
}

func renderCloseResult(w io.Writer, res *export.Result) {
	if res.Delivered {
		fmt.Fprintf(w, "%s exported %d entries ending %s\n",
			fullColor.Sprint("✓"), res.Exported, res.PeriodEndDate)
	} else {
		fmt.Fprintf(w, "%s delivery already confirmed, finished archiving\n", partialColor.Sprint("!"))
	}
	fmt.Fprintf(w, "  archived: %d\n  export id: %s\n", res.Archived, res.ExportID)
}
