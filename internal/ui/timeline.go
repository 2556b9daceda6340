package ui

import (
	"fmt"
	"strings"

	"github.com/vaultmcp/vaultmcp/internal/archaeology"
)

// timelineBarWidth is the widest activity bar, in cells.
const timelineBarWidth = 30

// RenderTimeline draws an archaeology timeline as month rows with activity
// bars scaled to the busiest month.
func RenderTimeline(tl *archaeology.Timeline, noColor bool) string {
	styles := GetStyles(noColor)
	var b strings.Builder

	b.WriteString(styles.Header.Render(fmt.Sprintf("Timeline: %s", tl.Topic)))
	b.WriteString("\n")

	if len(tl.Months) == 0 {
		b.WriteString(styles.Dim.Render("No activity found."))
		b.WriteString("\n")
		return b.String()
	}

	maxActivity := 0
	for _, m := range tl.Months {
		if m.Activity > maxActivity {
			maxActivity = m.Activity
		}
	}

	for _, m := range tl.Months {
		width := m.Activity * timelineBarWidth / maxActivity
		if width == 0 && m.Activity > 0 {
			width = 1
		}
		bar := strings.Repeat("█", width)
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			styles.Label.Render(m.Month),
			styles.Bar.Render(bar),
			styles.Dim.Render(fmt.Sprintf("%d notes, intensity %.2f", m.Activity, m.Intensity)),
		))
	}

	if len(tl.PeakPeriods) > 0 {
		peaks := make([]string, 0, len(tl.PeakPeriods))
		for _, p := range tl.PeakPeriods {
			peaks = append(peaks, p.Month)
		}
		b.WriteString(styles.Accent.Render("Peaks: " + strings.Join(peaks, ", ")))
		b.WriteString("\n")
	}
	if len(tl.DormantPeriods) > 0 {
		b.WriteString(styles.Dim.Render("Dormant: " + strings.Join(tl.DormantPeriods, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}
