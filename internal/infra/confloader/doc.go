// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader that layers several
// sources using koanf as the underlying library.
//
// Features:
//
//   - Multiple Sources: YAML files, environment variables, maps
//   - Watch Support: change notification for config files via fsnotify
//   - Type Safety: Unmarshaling into typed structs
//   - Defaults: values already present in the target struct are kept
//     for keys no source sets
//
// Priority (highest to lowest):
//
//  1. Environment variables (TALLYMESH_ prefix)
//  2. Configuration file
//  3. Default values
package confloader
