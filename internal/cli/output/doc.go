// Package output provides output formatting for tallymesh-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned key/value and list tables
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: progress animation while sockets connect
package output
