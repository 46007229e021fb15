package session

// Late-frame rule constants
const (
	// DropTolerance is how many frame periods a tick may arrive after it was
	// due before the frames it should have shown count as dropped
	DropTolerance = 1.0

	// MaxDropsPerTick caps how many dropped frames a single late tick
	// reports, so a process resumed after a long stall does not flood
	// listeners
	MaxDropsPerTick = 8
)

// IsLate determines whether a tick missed its deadline: it arrived more than
// DropTolerance frame periods after it was due. All times are in
// microseconds.
func IsLate(due, arrived, framePeriod int64) bool {
	if framePeriod <= 0 {
		return false
	}
	return float64(arrived-due) > DropTolerance*float64(framePeriod)
}

// MissedFrames returns how many frames a late tick skipped, capped at
// MaxDropsPerTick. It is zero for a tick that is on time.
func MissedFrames(due, arrived, framePeriod int64) int64 {
	if !IsLate(due, arrived, framePeriod) {
		return 0
	}
	return min((arrived-due)/framePeriod, MaxDropsPerTick)
}
