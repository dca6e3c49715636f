package network

import "fmt"

// RSSI bounds used when bucketing a reading, in dBm.
const (
	MinRSSI = -100
	MaxRSSI = -55
)

// SignalLevel is a Wi-Fi signal strength bucket.
type SignalLevel int

const (
	NoSignal SignalLevel = iota
	Poor
	Fair
	Good
	Excellent
)

// DefaultSignalLevels is the number of buckets SignalLevel distinguishes.
const DefaultSignalLevels = int(Excellent) + 1

// SignalLevelFromLevel converts a bucket index into a SignalLevel. Out of range indexes map to
// NoSignal.
func SignalLevelFromLevel(level int) SignalLevel {
	if level < int(NoSignal) || level > int(Excellent) {
		return NoSignal
	}
	return SignalLevel(level)
}

// Level returns the bucket index.
func (l SignalLevel) Level() int { return int(l) }

// Description returns the human-readable level shown to users.
func (l SignalLevel) Description() string {
	switch l {
	case Poor:
		return "poor"
	case Fair:
		return "fair"
	case Good:
		return "good"
	case Excellent:
		return "excellent"
	default:
		return "no signal"
	}
}

func (l SignalLevel) String() string {
	return fmt.Sprintf("WifiSignalLevel{level=%d, description='%s'}", int(l), l.Description())
}

// CalculateSignalLevel buckets an RSSI reading into numLevels levels, from 0 to numLevels-1.
// Readings at or below MinRSSI are 0 and readings at or above MaxRSSI are numLevels-1.
func CalculateSignalLevel(rssi, numLevels int) int {
	if numLevels < 2 {
		return 0
	}
	switch {
	case rssi <= MinRSSI:
		return 0
	case rssi >= MaxRSSI:
		return numLevels - 1
	}
	inputRange := float64(MaxRSSI - MinRSSI)
	outputRange := float64(numLevels - 1)
	return int(float64(rssi-MinRSSI) * outputRange / inputRange)
}
