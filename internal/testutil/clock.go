package testutil

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// Epoch is the wall time every deterministic test starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewClock returns a test clock frozen at Epoch. Advance it with SetTime.
//
// Durations measured against a frozen clock are always zero, which keeps
// recorded analyses and golden snapshots byte-identical across runs.
func NewClock() *clock.TestClock {
	return clock.NewTestClock(Epoch)
}
