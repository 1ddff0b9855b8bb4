// Package tickwheel implements a hierarchical timing wheel for large numbers
// of short-lived timeouts.
//
// A Wheel has 5 levels of 256 slots. Schedule, Cancel and Advance are O(1)
// amortized: a timer far in the future sits in a coarse level and is moved
// down one level at a time as its deadline approaches. Cancel only marks the
// timer inactive; it is discarded when its bucket is next processed.
//
// Wheel does no locking. Driver wraps one in a ticking goroutine and makes
// Schedule and Cancel safe for concurrent use.
package tickwheel
