// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/run"
)

var (
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	cachedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)
)

func verdict(passed bool) string {
	if passed {
		return passStyle.Render("PASS")
	}
	return failStyle.Render("FAIL")
}

// WriteTask renders one task result, with a per-step breakdown on failure
func WriteTask(w io.Writer, result *run.TaskResult) {
	fmt.Fprintf(w, "%s  %s\n", verdict(result.Passed()), result.Path)

	if result.Passed() {
		for _, step := range result.Steps {
			if step.Outcome == run.OutcomeCached {
				fmt.Fprintf(w, "       %s %s\n", step.Name, cachedStyle.Render("(cached)"))
			}
		}
		return
	}

	for _, step := range result.Steps {
		switch step.Outcome {
		case run.OutcomeSuccess:
			fmt.Fprintf(w, "       %s  %s\n", passStyle.Render("ok"), step.Name)
		case run.OutcomeCached:
			fmt.Fprintf(w, "       %s  %s %s\n", passStyle.Render("ok"), step.Name, cachedStyle.Render("(cached)"))
		case run.OutcomeSkipped:
			fmt.Fprintf(w, "       %s  %s\n", labelStyle.Render("--"), step.Name)
		default:
			fmt.Fprintf(w, "       %s %s\n", failStyle.Render("err"), step.Name)
		}
	}
	if result.Err != nil {
		fmt.Fprintf(w, "       %s\n", labelStyle.Render(result.Err.Error()))
	}
}

// WriteSuite renders per-task verdicts followed by the aggregate summary
func WriteSuite(w io.Writer, result *run.SuiteResult) {
	fmt.Fprintln(w, headerStyle.Render("Suite: "+result.Name))
	for _, task := range result.Tasks {
		WriteTask(w, task)
	}

	passed, failed := result.Counts()
	fmt.Fprintf(w, "\n%d passed, %d failed in %s\n",
		passed, failed, result.Duration.Round(10*time.Millisecond).String())
	if failed == 0 {
		fmt.Fprintln(w, passStyle.Render("SUITE PASS"))
	} else {
		fmt.Fprintln(w, failStyle.Render("SUITE FAIL"))
	}
}

// WriteTaskList renders the registered task paths with their 1-based
// numbers, the numbers 'floe setup -n' accepts
func WriteTaskList(w io.Writer, paths []domain.WorkPath) {
	fmt.Fprintln(w, headerStyle.Render("Registered tasks:"))
	for i, path := range paths {
		fmt.Fprintf(w, "  %3d: %s\n", i+1, path)
	}
}
