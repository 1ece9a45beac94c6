// Package replay drives a tracker and its page listeners from a scripted
// browsing scenario, so the pipeline can be exercised end to end against a
// running collector.
package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Step actions
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionSubmit   = "submit"
	ActionScroll   = "scroll"
	ActionHide     = "hide"
	ActionShow     = "show"
	ActionWait     = "wait"
	ActionIdentify = "identify"
	ActionCustom   = "custom"
	ActionFlush    = "flush"
	ActionUnload   = "unload"
)

// Scenario is one scripted page lifecycle.
type Scenario struct {
	Name string `yaml:"name"`

	// Page is an HTML file, relative to the scenario file. HTML inlines the
	// document instead.
	Page string `yaml:"page"`
	HTML string `yaml:"html"`

	Host           string  `yaml:"host"`
	UserAgent      string  `yaml:"user_agent"`
	Referrer       string  `yaml:"referrer"`
	DoNotTrack     bool    `yaml:"do_not_track"`
	LandingPath    string  `yaml:"landing_path"`
	ViewportHeight float64 `yaml:"viewport_height"`
	DocumentHeight float64 `yaml:"document_height"`

	Steps []Step `yaml:"steps"`
}

// Step is one user action. Which fields apply depends on Action.
type Step struct {
	Action     string         `yaml:"action"`
	Path       string         `yaml:"path,omitempty"`
	Title      string         `yaml:"title,omitempty"`
	Target     string         `yaml:"target,omitempty"`
	Percent    float64        `yaml:"percent,omitempty"`
	Duration   time.Duration  `yaml:"duration,omitempty"`
	UserID     string         `yaml:"user_id,omitempty"`
	Token      string         `yaml:"token,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// LoadScenario reads a scenario file and resolves its page document.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.HTML == "" && scenario.Page != "" {
		pagePath := scenario.Page
		if !filepath.IsAbs(pagePath) {
			pagePath = filepath.Join(filepath.Dir(path), pagePath)
		}
		page, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", pagePath, err)
		}
		scenario.HTML = string(page)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if scenario.LandingPath == "" {
		scenario.LandingPath = "/"
	}
	if scenario.ViewportHeight <= 0 {
		scenario.ViewportHeight = 900
	}
	if scenario.DocumentHeight <= 0 {
		scenario.DocumentHeight = scenario.ViewportHeight * 4
	}
	if err := scenario.validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) validate() error {
	for i, step := range s.Steps {
		step.Action = strings.ToLower(step.Action)
		s.Steps[i].Action = step.Action

		var missing string
		switch step.Action {
		case ActionNavigate:
			if step.Path == "" {
				missing = "path"
			}
		case ActionClick, ActionSubmit:
			if step.Target == "" {
				missing = "target"
			}
		case ActionWait:
			if step.Duration <= 0 {
				missing = "duration"
			}
		case ActionIdentify:
			if step.UserID == "" && step.Token == "" {
				missing = "user_id or token"
			}
		case ActionScroll, ActionHide, ActionShow, ActionCustom, ActionFlush, ActionUnload:
		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, step.Action)
		}
		if missing != "" {
			return fmt.Errorf("step %d (%s): %s is required", i+1, step.Action, missing)
		}
	}
	return nil
}
