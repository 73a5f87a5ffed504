package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Classes map[string]ruleSpec `yaml:"classes"`
}

type ruleSpec struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// LoadRules overlays the classes defined in a YAML file on base:
//
//	classes:
//	  payout_request:
//	    requests: 3
//	    window: 24h
func LoadRules(path string, base Rules) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit rules: %w", err)
	}
	return ParseRules(data, base)
}

func ParseRules(data []byte, base Rules) (Rules, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rate limit rules: %w", err)
	}

	rules := make(Rules, len(base)+len(file.Classes))
	for class, rule := range base {
		rules[class] = rule
	}

	for class, spec := range file.Classes {
		if spec.Requests <= 0 {
			return nil, fmt.Errorf("class %s: requests must be positive", class)
		}
		window, err := time.ParseDuration(spec.Window)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("class %s: window must be positive", class)
		}
		rules[class] = Rule{Class: class, Requests: spec.Requests, Window: window}
	}

	return rules, nil
}
