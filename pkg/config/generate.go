package config

// Checks the sample configuration at the repository root.
//go:generate go run ../../cmd/buscheck ../../databus.json
