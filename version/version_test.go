package version

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func setVersion(t *testing.T, v, commit, built string) {
	t.Helper()
	origV, origC, origB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = origV, origC, origB
	})
}

func TestGetVersionInfoLdflags(t *testing.T) {
	setVersion(t, "1.2.3", "abc1234", "2026-01-02T15:04:05Z")

	info := GetVersionInfo()
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", info.Version)
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("GitCommit = %q, want abc1234", info.GitCommit)
	}
	if !info.IsRelease {
		t.Error("IsRelease = false, want true for tagged version")
	}
	want := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	if !info.BuildDate.Equal(want) {
		t.Errorf("BuildDate = %v, want %v", info.BuildDate, want)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion is empty")
	}
}

func TestGetVersionInfoDev(t *testing.T) {
	setVersion(t, "dev", "", "")

	info := GetVersionInfo()
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.IsRelease {
		t.Error("IsRelease = true, want false for dev build")
	}
	if info.BuildDate.IsZero() {
		t.Error("BuildDate is zero, want a fallback timestamp")
	}
	if info.BuildTime == "" {
		t.Error("BuildTime is empty, want a fallback timestamp")
	}
}

func TestShort(t *testing.T) {
	setVersion(t, "1.2.3", "abc1234", "")
	if got := Short(); got != "1.2.3-abc1234" {
		t.Errorf("Short() = %q, want 1.2.3-abc1234", got)
	}
}

func TestShortWithoutCommit(t *testing.T) {
	setVersion(t, "2.0.0", "", "")
	got := Short()
	if !strings.HasPrefix(got, "2.0.0") {
		t.Errorf("Short() = %q, want prefix 2.0.0", got)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortCommit = %q, want 0123456", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("shortCommit = %q, want abc", got)
	}
}

func TestInfoJSONShape(t *testing.T) {
	setVersion(t, "1.0.0", "abc1234", "2026-01-02T15:04:05Z")

	data, err := json.Marshal(GetVersionInfo())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"version", "git_commit", "go_version", "is_release"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON missing key %q: %s", key, data)
		}
	}
}
