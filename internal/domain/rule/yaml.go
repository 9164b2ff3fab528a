package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// wireRule mirrors Rule but leaves Enabled as a pointer so the decoder can
// distinguish "absent" (defaults to true) from an explicit false.
type wireRule struct {
	ID              string           `yaml:"id"`
	Name            string           `yaml:"name"`
	Description     string           `yaml:"description,omitempty"`
	Enabled         *bool            `yaml:"enabled,omitempty"`
	Severity        Severity         `yaml:"severity,omitempty"`
	Action          Action           `yaml:"action,omitempty"`
	Tools           []string         `yaml:"tools,omitempty"`
	Conditions      []Condition      `yaml:"conditions,omitempty"`
	ConditionGroups []ConditionGroup `yaml:"condition_groups,omitempty"`
	Tags            []string         `yaml:"tags,omitempty"`
	Metadata        map[string]any   `yaml:"metadata,omitempty"`
}

type wireRuleSet struct {
	Version     string         `yaml:"version"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Rules       []wireRule     `yaml:"rules"`
	Settings    map[string]any `yaml:"settings,omitempty"`
}

// ParseRuleSetYAML decodes a YAML rule-file body into a RuleSet, applying
// the "enabled defaults true" rule and rejecting unsupported schema
// versions.
//
// A document need not be a full {version, name, rules: [...]} object: a
// bare list of rules (`- id: ...`) or a single rule object (`id` + `name`
// present, no `rules` key) are both accepted and synthesized into a
// RuleSet with Version set to SupportedVersion, matching what a rule
// author would naturally reach for when authoring one rule or a handful
// of them without the surrounding envelope.
func ParseRuleSetYAML(data []byte) (RuleSet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	if len(doc.Content) == 0 {
		return RuleSet{}, fmt.Errorf("parse rule set: empty document")
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var rules []wireRule
		if err := root.Decode(&rules); err != nil {
			return RuleSet{}, fmt.Errorf("parse bare rule list: %w", err)
		}
		return wireToRuleSet(wireRuleSet{Version: SupportedVersion, Rules: rules}), nil

	case yaml.MappingNode:
		var wire wireRuleSet
		if err := root.Decode(&wire); err != nil {
			return RuleSet{}, fmt.Errorf("parse rule set: %w", err)
		}
		if wire.Version == "" {
			if single, ok := decodeSingleRule(root); ok && len(wire.Rules) == 0 {
				return wireToRuleSet(wireRuleSet{Version: SupportedVersion, Rules: []wireRule{single}}), nil
			}
			return RuleSet{}, fmt.Errorf("rule set missing required \"version\" field")
		}
		if wire.Version != SupportedVersion {
			return RuleSet{}, fmt.Errorf("unsupported rule set version %q (expected %q)", wire.Version, SupportedVersion)
		}
		return wireToRuleSet(wire), nil

	default:
		return RuleSet{}, fmt.Errorf("parse rule set: unsupported document shape")
	}
}

// decodeSingleRule decodes node as a single rule object, reporting ok=true
// only when both "id" and "name" are present, matching the single-rule
// document shape.
func decodeSingleRule(node *yaml.Node) (wireRule, bool) {
	var wr wireRule
	if err := node.Decode(&wr); err != nil {
		return wireRule{}, false
	}
	if wr.ID == "" || wr.Name == "" {
		return wireRule{}, false
	}
	return wr, true
}

func wireToRuleSet(wire wireRuleSet) RuleSet {
	rs := RuleSet{
		Version:     wire.Version,
		Name:        wire.Name,
		Description: wire.Description,
		Settings:    wire.Settings,
		Rules:       make([]Rule, len(wire.Rules)),
	}
	for i, wr := range wire.Rules {
		enabled := true
		if wr.Enabled != nil {
			enabled = *wr.Enabled
		}
		rs.Rules[i] = Rule{
			ID:              wr.ID,
			Name:            wr.Name,
			Description:     wr.Description,
			Enabled:         enabled,
			Severity:        wr.Severity,
			Action:          wr.Action,
			Tools:           wr.Tools,
			Conditions:      wr.Conditions,
			ConditionGroups: wr.ConditionGroups,
			Tags:            wr.Tags,
			Metadata:        wr.Metadata,
		}
	}
	return rs
}
