// Package accounts provides the credential providers the goverify binary
// plugs into the engine: a Postgres accounts table and a YAML file held in
// memory.
package accounts
