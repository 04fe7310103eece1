// Package mysql provides the on-chain transaction journal backed by MySQL.
// It encapsulates schema migrations, connection pooling, and strongly typed
// queries for persisting every submission the agent broadcasts together with
// its final outcome. A file-backed memory implementation is provided for
// development and tests.
package mysql
