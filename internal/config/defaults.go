package config

// DefaultAddr is the default listen address for the bridge HTTP server.
// The port matches what paired web applications expect to find locally.
const DefaultAddr = "127.0.0.1:1646"

// DefaultPairRatePerMinute is the pairing prompt rate limit applied when
// the config file does not set one. Generous: a human can only answer so
// many prompts, and legitimate apps pair once.
const DefaultPairRatePerMinute = 12
