// Package network models the values a network status screen shows (connectivity status, Wi-Fi
// signal level and nearby access points) and exposes them as event sources.
//
// Detecting network changes is left to the platform: Android or iOS glue code feeds a Monitor
// with what the OS reports, and the Monitor republishes it to any number of subscribers. The
// package also includes an active Internet reachability probe for hosts that have no platform
// notifications at all.
package network
