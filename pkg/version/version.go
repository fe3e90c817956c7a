package version

// Version is the current release; overridden at build time via
// -ldflags "-X tracklog/pkg/version.Version=...".
var Version = "0.2.0"
