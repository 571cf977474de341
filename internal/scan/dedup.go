package scan

// UniqueMatches keeps the first match of each endpoint value, whichever
// source or matcher reported it, preserving order.
func UniqueMatches(ms []Match) []Match {
	seen := make(map[string]struct{}, len(ms))
	var out []Match
	for _, m := range ms {
		if _, dup := seen[m.Value]; dup {
			continue
		}
		seen[m.Value] = struct{}{}
		out = append(out, m)
	}
	return out
}
