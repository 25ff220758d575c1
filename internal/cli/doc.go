// Package cli is responsible for parsing command-line arguments and the
// optional TOML configuration file, validating user input, and handling
// process-level concerns like exit codes. It translates both into the
// application's internal configuration.
package cli
