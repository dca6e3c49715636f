package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSignalLevel(t *testing.T) {
	tests := []struct {
		rssi      int
		numLevels int
		want      int
	}{
		{rssi: -120, numLevels: 5, want: 0},
		{rssi: MinRSSI, numLevels: 5, want: 0},
		{rssi: -90, numLevels: 5, want: 0},
		{rssi: -80, numLevels: 5, want: 1},
		{rssi: -70, numLevels: 5, want: 2},
		{rssi: -60, numLevels: 5, want: 3},
		{rssi: MaxRSSI, numLevels: 5, want: 4},
		{rssi: -30, numLevels: 5, want: 4},
		{rssi: -70, numLevels: 1, want: 0},
		{rssi: -70, numLevels: 10, want: 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateSignalLevel(tt.rssi, tt.numLevels), "rssi=%d levels=%d", tt.rssi, tt.numLevels)
	}
}

func TestSignalLevel(t *testing.T) {
	assert.Equal(t, Fair, SignalLevelFromLevel(2))
	assert.Equal(t, NoSignal, SignalLevelFromLevel(-1))
	assert.Equal(t, NoSignal, SignalLevelFromLevel(7))
	assert.Equal(t, "excellent", Excellent.Description())
	assert.Equal(t, "no signal", NoSignal.Description())
	assert.Equal(t, 3, Good.Level())
	assert.Equal(t, "WifiSignalLevel{level=1, description='poor'}", Poor.String())
	assert.Equal(t, 5, DefaultSignalLevels)
}

func TestConnectivityStatus(t *testing.T) {
	for _, s := range []ConnectivityStatus{Unknown, WifiConnected, MobileConnected, Offline} {
		assert.Equal(t, s, ParseConnectivityStatus(s.String()))
	}
	assert.Equal(t, WifiConnected, ParseConnectivityStatus("wifi"))
	assert.Equal(t, Offline, ParseConnectivityStatus("none"))
	assert.Equal(t, Unknown, ParseConnectivityStatus("bogus"))
	assert.Equal(t, "offline", Offline.Description())
}

func TestSSIDs(t *testing.T) {
	aps := []AccessPoint{{SSID: "home", RSSI: -50}, {SSID: "cafe", RSSI: -80}}
	assert.Equal(t, []string{"home", "cafe"}, SSIDs(aps))
	assert.Empty(t, SSIDs(nil))
}
