package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}
	commit, built := fromSettings(settings, "unknown", "unknown")
	if commit != "0123456789ab-dirty" {
		t.Errorf("commit = %q", commit)
	}
	if built != "2026-01-02T03:04:05Z" {
		t.Errorf("build time = %q", built)
	}

	commit, built = fromSettings(nil, "unknown", "yesterday")
	if commit != "unknown" || built != "yesterday" {
		t.Errorf("empty settings changed values: %q %q", commit, built)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version+" (") {
		t.Errorf("String() = %q", s)
	}
}
