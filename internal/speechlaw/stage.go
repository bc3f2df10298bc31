package speechlaw

import "strings"

// Stage is the candidacy phase that decides which restrictions apply.
type Stage string

const (
	StagePreFiling   Stage = "pre_filing"
	StagePreliminary Stage = "preliminary"
	StageRegistered  Stage = "registered"
	StageIncumbent   Stage = "incumbent"
	StageUnknown     Stage = "unknown"
)

// Stages lists every stage in declaration order.
func Stages() []Stage {
	return []Stage{StagePreFiling, StagePreliminary, StageRegistered, StageIncumbent, StageUnknown}
}

// Restrictive reports whether campaign commitments are prohibited. An unknown
// stage is treated as restrictive.
func (s Stage) Restrictive() bool {
	return s == StagePreFiling || s == StageUnknown
}

// ParseStage accepts a stage identifier and falls back to StageUnknown.
func ParseStage(raw string) Stage {
	switch s := Stage(strings.ToLower(strings.TrimSpace(raw))); s {
	case StagePreFiling, StagePreliminary, StageRegistered, StageIncumbent:
		return s
	case "":
		return StageUnknown
	default:
		return StageFromStatus(raw)
	}
}

var statusLabels = []struct {
	needle string
	stage  Stage
}{
	{"예비후보", StagePreliminary},
	{"preliminary", StagePreliminary},
	{"출마예정", StagePreFiling},
	{"입후보예정", StagePreFiling},
	{"준비", StagePreFiling},
	{"pre-filing", StagePreFiling},
	{"pre_filing", StagePreFiling},
	{"prospective", StagePreFiling},
	{"현역", StageIncumbent},
	{"현직", StageIncumbent},
	{"incumbent", StageIncumbent},
	{"후보", StageRegistered},
	{"registered", StageRegistered},
	{"candidate", StageRegistered},
}

// StageFromStatus maps a free-form declared status ("예비후보", "registered
// candidate", "incumbent") onto a Stage.
func StageFromStatus(status string) Stage {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "" {
		return StageUnknown
	}
	for _, label := range statusLabels {
		if strings.Contains(normalized, label.needle) {
			return label.stage
		}
	}
	return StageUnknown
}
