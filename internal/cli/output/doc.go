// Package output renders fieldstore-cli results as tables, JSON or YAML.
//
// Values are projected through their JSON encoding first, so tables and
// YAML show the same field names as the JSON output and as snapshot
// files.
package output
