package common

// Version is the service version, set at build time via
// -ldflags "-X github.com/Lazizjon-web-dev/medchain/common.Version=...".
var Version = "dev"
