// Package logging constructs the zap.Logger every liteDB component logs
// through, grounded on the same zap setup the reference vulture's main()
// builds: a single logger assembled once at startup and threaded down
// through every component rather than reached for as a package global.
package logging

import "go.uber.org/zap"

// New returns a production-style JSON logger, or a development-style
// console logger with debug-level output when debug is true — the same
// split the server's -d/--debug flag governs for SO_REUSEADDR.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
