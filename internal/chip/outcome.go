package chip

import (
	"strconv"
)

const (
	KeyFlashed = "flashed"
	KeyRSSI    = "rssi"

	// RSSIUnavailable is recorded when no ping cycle produced a value.
	RSSIUnavailable = "n/a"
)

// Outcome is the key/value result of one test, handed to storage as is.
type Outcome map[string]string

// Flashed reports the flashed flag.
func (o Outcome) Flashed() bool {
	return o[KeyFlashed] == "true"
}

// RSSI returns the averaged RSSI when one was measured.
func (o Outcome) RSSI() (int, bool) {
	v, ok := o[KeyRSSI]
	if !ok || v == RSSIUnavailable {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatRSSI(v int, ok bool) string {
	if !ok {
		return RSSIUnavailable
	}
	return strconv.Itoa(v)
}
