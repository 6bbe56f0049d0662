package types

// AppName is used for the CLI name, commit status context and workspace prefixes
const AppName = "capsulecd"

// Version is overwritten at build time via -ldflags
var Version = "dev"
