package browser

import (
	"fmt"
	"math/rand"
)

// Fingerprint is the identity a session presents to the site
type Fingerprint struct {
	UserAgent string
	Width     int
	Height    int
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.UserAgent)
}

// ViewportBounds limits the randomized window size
type ViewportBounds struct {
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
}

// RandomFingerprint picks a user agent from agents and a window size inside
// bounds. An empty agent list leaves the browser's own user agent in place.
func RandomFingerprint(rng *rand.Rand, agents []string, bounds ViewportBounds) Fingerprint {
	fp := Fingerprint{
		Width:  between(rng, bounds.MinWidth, bounds.MaxWidth),
		Height: between(rng, bounds.MinHeight, bounds.MaxHeight),
	}
	if len(agents) > 0 {
		fp.UserAgent = agents[rng.Intn(len(agents))]
	}
	return fp
}

func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
