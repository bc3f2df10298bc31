package speechlaw

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"campaign-compliance/internal/rules"
)

type rulePack struct {
	Rules []rules.Spec `yaml:"rules"`
}

// LoadRules returns the default table merged with the rule pack at path. A
// pack rule replaces the default rule of the same name. Neutralize and style
// rules pass through for the editor. An empty path yields the defaults.
func LoadRules(path string) (rules.Table, error) {
	defaults := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	var pack rulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("unmarshal rule pack: %w", err)
	}
	overrides := make(rules.Table, 0, len(pack.Rules))
	for _, spec := range pack.Rules {
		rule, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		switch rule.Tier {
		case rules.TierBlacklist, rules.TierWhitelist, rules.TierFuture, rules.TierBenefit, rules.TierClaim,
			rules.TierNeutralize, rules.TierStyle:
		default:
			return nil, fmt.Errorf("rule %q: unsupported tier %q", rule.Name, rule.Tier)
		}
		overrides = append(overrides, rule)
	}
	return defaults.Merge(overrides), nil
}
