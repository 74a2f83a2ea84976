// Package main provides the entry point for tallymesh-cli.
//
// Usage:
//
//	tallymesh-cli counter increment --amount 5
//	tallymesh-cli counter get --name votes -o json
//	tallymesh-cli presence get
//	tallymesh-cli watch --name votes
package main
