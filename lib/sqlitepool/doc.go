// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the gatehouse-standard SQLite connection
// pool.
//
// The key store is the only persistent storage in gatehouse, and this
// package is how it opens SQLite: zombiezen.com/go/sqlite wrapped with
// fixed pragmas. WAL journal mode for concurrent readers during writes,
// NORMAL synchronous for process-crash durability without
// fsync-per-commit overhead, and a busy timeout so write contention
// degrades to waiting instead of SQLITE_BUSY errors.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: write-ahead logging for concurrent readers and
//     a single writer. Reads never block writes; writes never block
//     reads.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across OS crashes or power failure — a lost key row is
//     re-issuable by its owner, so the latency trade is acceptable.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock instead
//     of returning SQLITE_BUSY immediately.
//   - foreign_keys=ON: referential integrity enforced by the engine.
//   - cache_size=-2048: 2 MB page cache per connection, plenty for the
//     key store's point lookups over small rows.
//   - temp_store=MEMORY: temporary tables and indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/lib/gatehouse/keys.db",
//	    PoolSize: 4,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// # Design
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. There is no attempt
// to abstract away SQLite's connection model or invent a query builder.
// The key store writes SQL, uses sqlitex.Execute for cached statements,
// and keeps every write single-row and atomic.
package sqlitepool
