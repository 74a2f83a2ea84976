// Package config holds the persisted tallymesh-cli settings
// (~/.tallymesh/cli.yaml). Flags and TALLYMESH_* variables take
// precedence over the file.
package config
