package firewall

import (
	"errors"
	"fmt"
	"strings"
)

type Action string

const ActionBlock Action = "block"

// Resource types understood by the host filter.
const (
	ResourceScript         = "script"
	ResourceXMLHTTPRequest = "xmlhttprequest"
	ResourceImage          = "image"
	ResourceStylesheet     = "stylesheet"
	ResourceSubFrame       = "sub_frame"
	ResourceMainFrame      = "main_frame"
)

var validResourceTypes = map[string]bool{
	ResourceScript:         true,
	ResourceXMLHTTPRequest: true,
	ResourceImage:          true,
	ResourceStylesheet:     true,
	ResourceSubFrame:       true,
	ResourceMainFrame:      true,
}

// Rule is a declarative match-and-action record for the host filter.
type Rule struct {
	ID            int      `json:"id"`
	Priority      int      `json:"priority"`
	Action        Action   `json:"action"`
	URLFilter     string   `json:"urlFilter"`
	ResourceTypes []string `json:"resourceTypes"`
}

// ErrMalformedRule is returned by hosts rejecting an invalid rule.
var ErrMalformedRule = errors.New("malformed rule")

// Validate checks the rule the way the host filter would.
func (r Rule) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id %d must be positive", ErrMalformedRule, r.ID)
	}
	if r.Action != ActionBlock {
		return fmt.Errorf("%w: rule %d has unknown action %q", ErrMalformedRule, r.ID, r.Action)
	}
	if strings.TrimSpace(r.URLFilter) == "" {
		return fmt.Errorf("%w: rule %d has empty url filter", ErrMalformedRule, r.ID)
	}
	for _, t := range r.ResourceTypes {
		if !validResourceTypes[t] {
			return fmt.Errorf("%w: rule %d has unknown resource type %q", ErrMalformedRule, r.ID, t)
		}
	}
	return nil
}

var trackerRules = []Rule{
	{
		ID:            1001,
		Priority:      1,
		Action:        ActionBlock,
		URLFilter:     "*google-analytics.com*",
		ResourceTypes: []string{ResourceScript, ResourceXMLHTTPRequest, ResourceImage},
	},
	{
		ID:            1002,
		Priority:      1,
		Action:        ActionBlock,
		URLFilter:     "*googletagmanager.com*",
		ResourceTypes: []string{ResourceScript, ResourceXMLHTTPRequest},
	},
	{
		ID:            1003,
		Priority:      1,
		Action:        ActionBlock,
		URLFilter:     "*doubleclick.net*",
		ResourceTypes: []string{ResourceScript, ResourceXMLHTTPRequest, ResourceImage},
	},
}

// Rules returns a copy of the constant tracker-blocking rule list.
func Rules() []Rule {
	out := make([]Rule, len(trackerRules))
	for i, r := range trackerRules {
		r.ResourceTypes = append([]string(nil), r.ResourceTypes...)
		out[i] = r
	}
	return out
}

// RuleIDs returns the ids of rules in order.
func RuleIDs(rules []Rule) []int {
	ids := make([]int, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}
