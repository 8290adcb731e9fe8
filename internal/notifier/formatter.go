package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RSIPipeline/internal/model"
)

// maxListedFailures caps the failure lines in one message.
const maxListedFailures = 10

// FormatRunSummary formats a pipeline run into a Telegram HTML message.
func FormatRunSummary(s *model.RunSummary) string {
	var b strings.Builder

	icon := "✅"
	switch {
	case s.PersistSkipped && len(s.Succeeded) == 0:
		icon = "⚠️"
	case !s.PersistSkipped && !s.Persisted.Success:
		icon = "❌"
	case len(s.Failed) > 0:
		icon = "🟡"
	}

	b.WriteString(fmt.Sprintf("%s <b>RSI pipeline run</b> | %s\n\n", icon, s.StartedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString(fmt.Sprintf("Symbols: %d attempted, %d ok, %d failed\n", s.Attempted, len(s.Succeeded), len(s.Failed)))

	switch {
	case s.PersistSkipped:
		b.WriteString(fmt.Sprintf("Storage: skipped (%s)\n", html.EscapeString(s.SkipReason)))
	case s.Persisted.Success:
		b.WriteString(fmt.Sprintf("Storage: %d records written\n", s.Persisted.InsertedCount))
	default:
		b.WriteString(fmt.Sprintf("Storage: <b>failed</b> %s\n", html.EscapeString(s.Persisted.Error)))
	}
	if s.Pruned > 0 {
		b.WriteString(fmt.Sprintf("Pruned: %d old rows\n", s.Pruned))
	}
	b.WriteString(fmt.Sprintf("Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(100*time.Millisecond)))

	if len(s.Failed) > 0 {
		b.WriteString("\n<b>Failures:</b>\n")
		for i, f := range s.Failed {
			if i == maxListedFailures {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(s.Failed)-maxListedFailures))
				break
			}
			b.WriteString(fmt.Sprintf("  %s: %s\n", html.EscapeString(f.Symbol), html.EscapeString(f.Reason)))
		}
	}

	b.WriteString(fmt.Sprintf("\nRun ID: <code>%s</code>", s.RunID))
	return b.String()
}
