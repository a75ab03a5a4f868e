package liteforge

// Version is overridden at build time with -ldflags "-X github.com/aretw0/liteforge.Version=...".
var Version = "dev"
