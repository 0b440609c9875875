package suite

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"
)

// Status is a case outcome.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Result is the outcome of one case.
type Result struct {
	Suite         string `json:"suite"`
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Status        Status `json:"status"`
	Error         string `json:"error,omitempty"`
	TeardownError string `json:"teardown_error,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	Dir           string `json:"dir,omitempty"`
	Screenshot    string `json:"screenshot,omitempty"`
	Recording     string `json:"recording,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID      string    `json:"run_id"`
	Engine     string    `json:"engine"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

func (r *Report) finish(results []Result) {
	r.FinishedAt = time.Now()
	r.Results = results
	for _, res := range results {
		if res.Status == StatusPassed {
			r.Passed++
		} else {
			r.Failed++
		}
	}
}

// OK reports whether every case passed.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// WriteJSON writes the report to path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteSummary prints a per-suite table followed by the failures.
func (r *Report) WriteSummary(w io.Writer) error {
	type tally struct{ passed, failed int }
	var order []string
	bySuite := map[string]*tally{}
	for _, res := range r.Results {
		t, ok := bySuite[res.Suite]
		if !ok {
			t = &tally{}
			bySuite[res.Suite] = t
			order = append(order, res.Suite)
		}
		if res.Status == StatusPassed {
			t.passed++
		} else {
			t.failed++
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUITE\tPASSED\tFAILED\t")
	for _, name := range order {
		t := bySuite[name]
		mark := "✓"
		if t.failed > 0 {
			mark = "✗"
		}
		fmt.Fprintf(tw, "%s %s\t%d\t%d\t\n", mark, name, t.passed, t.failed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range r.Failures() {
		title := res.Name
		if res.ID != "" {
			title = res.ID + ": " + res.Name
		}
		fmt.Fprintf(w, "\n✗ %s / %s\n  %s\n", res.Suite, title, res.Error)
		if res.Screenshot != "" {
			fmt.Fprintf(w, "  screenshot: %s\n", res.Screenshot)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed in %s (run %s, %s engine)\n",
		r.Passed, r.Failed, r.Duration().Round(time.Millisecond), r.RunID, r.Engine)
	return err
}
