// Package output renders kvmesh-cli results as tables, JSON or YAML.
//
// Commands build a *Table for human output. JSON and YAML formatters
// encode the same values the server returned, so scripted output is
// stable across releases.
package output
