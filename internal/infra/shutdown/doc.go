// Package shutdown runs ordered cleanup hooks when the process is asked
// to stop.
package shutdown
