package version

var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

// String returns a human-readable version string.
func String() string {
	return "lunapad " + Version + " (" + GitCommit + ", " + BuildDate + ")"
}
