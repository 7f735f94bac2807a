package version

import "testing"

func TestString(t *testing.T) {
	origV, origSHA, origBT := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origV, origSHA, origBT }()

	Version = "1.2.0"
	GitSHA = "0123456789abcdef0123"
	BuildTime = "2026-01-01T00:00:00Z"

	want := "drivecheck 1.2.0 (0123456789ab, built 2026-01-01T00:00:00Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
