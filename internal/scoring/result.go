package scoring

import "fmt"

// Result is the outcome of one detector run. Failures are data: a detector
// never returns an error for a draft that breaks a rule.
type Result struct {
	Passed  bool           `json:"passed"`
	Issues  []string       `json:"issues"`
	Details map[string]any `json:"details,omitempty"`
}

// Pass returns an empty passing result.
func Pass() Result {
	return Result{Passed: true, Details: map[string]any{}}
}

// Fail appends an issue and marks the result failed.
func (r *Result) Fail(code, format string, args ...any) {
	r.Passed = false
	msg := code
	if format != "" {
		msg = code + ": " + fmt.Sprintf(format, args...)
	}
	r.Issues = append(r.Issues, msg)
}

// Warn records an issue without failing the result.
func (r *Result) Warn(code, format string, args ...any) {
	msg := code
	if format != "" {
		msg = code + ": " + fmt.Sprintf(format, args...)
	}
	r.Issues = append(r.Issues, msg)
}

// Check names a detector result for merging.
type Check struct {
	Name   string
	Result Result
}

// Merge folds several named detector results into one decision. It passes only
// when every part passes; issues keep detector order and are prefixed with the
// detector name, and each detector's details are kept under its name.
func Merge(checks ...Check) Result {
	merged := Pass()
	for _, c := range checks {
		if !c.Result.Passed {
			merged.Passed = false
		}
		for _, issue := range c.Result.Issues {
			merged.Issues = append(merged.Issues, fmt.Sprintf("[%s] %s", c.Name, issue))
		}
		merged.Details[c.Name] = c.Result.Details
	}
	return merged
}
