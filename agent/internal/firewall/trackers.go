package firewall

// KnownTrackers lists hostname substrings of analytics and advertising
// services that page observers count.
var KnownTrackers = []string{
	"google-analytics.com",
	"doubleclick.net",
	"facebook.com/tr",
	"googletagmanager.com",
	"adnxs.com",
	"adsystem.amazon.com",
}

// Trackers returns the configured tracker list, falling back to
// KnownTrackers when override is empty. Duplicates and blanks are dropped.
func Trackers(override []string) []string {
	src := override
	if len(src) == 0 {
		src = KnownTrackers
	}
	seen := make(map[string]bool, len(src))
	out := make([]string, 0, len(src))
	for _, t := range src {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
