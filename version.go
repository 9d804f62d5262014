package itpbot

// Version is the release of the assistant. Overridden at build time with
// -ldflags "-X github.com/aretw0/itpbot.Version=...".
var Version = "0.1.0"
