package lfmap

import (
	"runtime"
	"runtime/debug"
)

var lockFree = detectLockFree(runtime.GOARCH, goarm())

// detectLockFree reports whether pointer CAS and 64-bit atomic counters are
// native on the target. Pointer CAS is native everywhere Go runs; 64-bit
// operations fall back to a runtime spinlock on 32-bit MIPS and on ARM
// older than v7.
func detectLockFree(goarch, goarmVersion string) bool {
	switch goarch {
	case "mips", "mipsle":
		return false
	case "arm":
		switch goarmVersion {
		case "5", "6":
			return false
		}
	}
	return true
}

func goarm() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "GOARM" {
			// Values may carry a float suffix, e.g. "7,softfloat".
			if len(s.Value) > 0 {
				return s.Value[:1]
			}
		}
	}
	return ""
}
