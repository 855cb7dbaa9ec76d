package osmprocessing

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Near reports whether two points are at most tolerance meters apart.
func Near(p, q orb.Point, tolerance float64) bool {
	if p.Equal(q) {
		return true
	}
	return geo.Distance(p, q) <= tolerance
}

// ChainLines merges lines end to end until no two open chains share an
// endpoint within tolerance. Lines may be joined in either direction. A
// chain with at least four points whose ends meet is closed: its last point
// is snapped onto the first and it is never extended again.
//
// The result depends on the order of lines, so callers pass them sorted.
func ChainLines(lines []orb.LineString, tolerance float64) []orb.LineString {
	chains := make([]orb.LineString, 0, len(lines))
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		chains = append(chains, slices.Clone(l))
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(chains); i++ {
			if isClosed(chains[i], tolerance) {
				continue
			}
			for j := i + 1; j < len(chains); j++ {
				if isClosed(chains[j], tolerance) {
					continue
				}
				joined, ok := joinLines(chains[i], chains[j], tolerance)
				if !ok {
					continue
				}
				chains[i] = joined
				chains = slices.Delete(chains, j, j+1)
				merged = true
				if isClosed(chains[i], tolerance) {
					break
				}
				j = i
			}
		}
	}

	for _, c := range chains {
		if isClosed(c, tolerance) {
			c[len(c)-1] = c[0]
		}
	}

	return chains
}

// IsClosedChain reports whether a chain forms a ring under tolerance.
func IsClosedChain(ls orb.LineString, tolerance float64) bool {
	return isClosed(ls, tolerance)
}

func isClosed(ls orb.LineString, tolerance float64) bool {
	return len(ls) >= 4 && Near(ls[0], ls[len(ls)-1], tolerance)
}

func joinLines(a, b orb.LineString, tolerance float64) (orb.LineString, bool) {
	aHead, aTail := a[0], a[len(a)-1]
	bHead, bTail := b[0], b[len(b)-1]

	switch {
	case Near(aTail, bHead, tolerance):
		return concat(a, b), true
	case Near(aTail, bTail, tolerance):
		return concat(a, reversed(b)), true
	case Near(aHead, bTail, tolerance):
		return concat(b, a), true
	case Near(aHead, bHead, tolerance):
		return concat(reversed(b), a), true
	}
	return nil, false
}

// concat appends b to a, dropping b's first point when it repeats a's last.
func concat(a, b orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(a)+len(b))
	out = append(out, a...)
	if a[len(a)-1].Equal(b[0]) {
		b = b[1:]
	}
	return append(out, b...)
}

func reversed(ls orb.LineString) orb.LineString {
	out := slices.Clone(ls)
	slices.Reverse(out)
	return out
}
