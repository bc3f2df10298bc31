package scoring

import "testing"

func TestMerge(t *testing.T) {
	ok := Pass()
	ok.Details["count"] = 1

	bad := Pass()
	bad.Fail("title_too_short", "%d < %d", 4, 10)

	tests := []struct {
		name     string
		checks   []Check
		passed   bool
		issueLen int
	}{
		{"all pass", []Check{{"a", ok}, {"b", ok}}, true, 0},
		{"one fails", []Check{{"a", ok}, {"title", bad}}, false, 1},
		{"empty", nil, true, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Merge(tc.checks...)
			if result.Passed != tc.passed {
				t.Fatalf("expected passed=%v got %v", tc.passed, result.Passed)
			}
			if len(result.Issues) != tc.issueLen {
				t.Fatalf("expected %d issues got %v", tc.issueLen, result.Issues)
			}
		})
	}

	merged := Merge(Check{"title", bad})
	if merged.Issues[0] != "[title] title_too_short: 4 < 10" {
		t.Fatalf("unexpected issue text %q", merged.Issues[0])
	}
}

func TestWarnKeepsPassing(t *testing.T) {
	r := Pass()
	r.Warn("keyword_density", "")
	if !r.Passed || len(r.Issues) != 1 {
		t.Fatalf("warn should not fail: %+v", r)
	}
}
