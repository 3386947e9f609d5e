package recalc

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// PrintSummary renders the run counters as a table.
func PrintSummary(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft, tw.AlignRight}
	})

	c := r.Counters
	data := [][]string{
		{"Run ID", r.RunID.String()},
		{"Modes", joinModes(r.Modes)},
		{"Duration", r.End.Sub(r.Start).Round(time.Millisecond).String()},
		{"Scores recalculated", okColor.Sprint(strconv.Itoa(c.Processed))},
		{"Scores skipped", colorCount(warnColor, c.Skipped)},
		{"Scores failed", colorCount(failColor, c.Failed)},
		{"Users updated", okColor.Sprint(strconv.Itoa(c.UsersUpdated))},
		{"Users failed", colorCount(failColor, c.UsersFailed)},
	}
	if len(r.ScoreChanges) > 0 {
		total, avg := r.TotalPPChange(), r.AveragePPChange()
		data = append(data,
			[]string{"Total PP change", fmt.Sprintf("%s%.3f", sign(total), total)},
			[]string{"Average PP change", fmt.Sprintf("%s%.3f", sign(avg), avg)},
		)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func colorCount(c *color.Color, n int) string {
	if n == 0 {
		return strconv.Itoa(n)
	}
	return c.Sprint(strconv.Itoa(n))
}
