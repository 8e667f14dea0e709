// Package monitoring holds the package-level diagnostic logger shared by
// the fabrication components.
package monitoring

import "log"

// Logf is the diagnostic logger used across the module. It defaults to
// log.Printf; tests mute it and tools may redirect it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the module logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
