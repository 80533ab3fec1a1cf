package firewall

import "strings"

// Match reports whether rule would block a request for rawURL of the given
// resource type. Only '*' wildcards are supported, matched against the whole
// URL; this is a diagnostic helper, the host filter does the real matching.
func Match(rule Rule, rawURL, resourceType string) bool {
	if len(rule.ResourceTypes) > 0 {
		found := false
		for _, t := range rule.ResourceTypes {
			if t == resourceType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return globMatch(strings.ToLower(rule.URLFilter), strings.ToLower(rawURL))
}

// Blocking returns the highest priority rule matching the request.
func Blocking(rules []Rule, rawURL, resourceType string) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range rules {
		if r.Action != ActionBlock || !Match(r, rawURL, resourceType) {
			continue
		}
		if !found || r.Priority > best.Priority {
			best, found = r, true
		}
	}
	return best, found
}

// globMatch treats a pattern without leading/trailing '*' as anchored at
// that end, like a url filter.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}
