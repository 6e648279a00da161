package utils

import "sync/atomic"

var lightTheme atomic.Bool

// SetLightTheme sets the process-wide light display mode flag.
func SetLightTheme(on bool) {
	lightTheme.Store(on)
}

func LightTheme() bool {
	return lightTheme.Load()
}
