package message

import "github.com/gobwas/glob"

// Matches reports whether channel is selected by this filter:
// excluded by any Exclude pattern loses outright, otherwise an empty
// Include list admits everything and a non-empty one requires a
// match. Patterns are glob patterns (e.g. "notify.*"), matched the
// same way modules/reverseproxy matches route patterns — compiled
// on every call since filters are small and evaluated far less often
// than routes are.
func (c ChannelFilter) Matches(channel string) bool {
	if globAnyMatch(c.Exclude, channel) {
		return false
	}
	if len(c.Include) == 0 {
		return true
	}
	return globAnyMatch(c.Include, channel)
}

func globAnyMatch(patterns []string, channel string) bool {
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			if p == channel {
				return true
			}
			continue
		}
		if g.Match(channel) {
			return true
		}
	}
	return false
}
