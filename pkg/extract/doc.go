// Package extract reads organisation reviews from a live page.
//
// The page re-renders its review list while it is being scrolled and
// expanded, so nothing here holds on to DOM nodes. Cards are addressed by the
// ordinal the page assigns them (aria-posinset) and looked up again for
// every action through PositionIndex. Field values are read from a goquery
// snapshot of a card, one independent lookup per field, each falling back to
// its zero value.
package extract
