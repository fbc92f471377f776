// Package config loads run profiles.
//
// A run profile is CUE. It is unified with the embedded #Profile schema,
// which supplies defaults and value constraints, then decoded and checked
// for cross-field consistency. A profile is read once at startup and never
// changes for the run.
//
// Example profile:
//
//	name:         "track-day"
//	official_run: true
//	run_length:   1250
//	timeouts: {
//	    calibrating:     {after: "2m"}
//	    nominal_braking: {after: "20s"}
//	}
package config
