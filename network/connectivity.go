package network

// ConnectivityStatus is the kind of network the device is attached to.
type ConnectivityStatus int

const (
	Unknown ConnectivityStatus = iota
	WifiConnected
	MobileConnected
	Offline
)

// Description returns the human-readable status shown to users.
func (s ConnectivityStatus) Description() string {
	switch s {
	case WifiConnected:
		return "connected to WiFi"
	case MobileConnected:
		return "connected to mobile network"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

func (s ConnectivityStatus) String() string {
	switch s {
	case WifiConnected:
		return "WIFI_CONNECTED"
	case MobileConnected:
		return "MOBILE_CONNECTED"
	case Offline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// ParseConnectivityStatus accepts the String form or a short alias ("wifi", "mobile",
// "offline"). Anything else is Unknown.
func ParseConnectivityStatus(s string) ConnectivityStatus {
	switch s {
	case "WIFI_CONNECTED", "wifi":
		return WifiConnected
	case "MOBILE_CONNECTED", "mobile", "cellular":
		return MobileConnected
	case "OFFLINE", "offline", "none":
		return Offline
	default:
		return Unknown
	}
}

// ConnectivityPredicate selects connectivity statuses.
type ConnectivityPredicate func(ConnectivityStatus) bool

// HasStatus matches any of statuses.
func HasStatus(statuses ...ConnectivityStatus) ConnectivityPredicate {
	return func(s ConnectivityStatus) bool {
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
}

// Connected matches statuses where the device is attached to some network.
func Connected(s ConnectivityStatus) bool {
	return s == WifiConnected || s == MobileConnected
}
