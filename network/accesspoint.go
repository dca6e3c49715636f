package network

// AccessPoint is one entry of a Wi-Fi scan.
type AccessPoint struct {
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	RSSI      int    `json:"rssi"`
	Frequency int    `json:"frequency"`
}

// SSIDs returns the SSID of every access point, in scan order.
func SSIDs(aps []AccessPoint) []string {
	ssids := make([]string, 0, len(aps))
	for _, ap := range aps {
		ssids = append(ssids, ap.SSID)
	}
	return ssids
}
