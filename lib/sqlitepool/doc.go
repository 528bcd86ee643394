// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens zombiezen.com/go/sqlite connection pools
// with Parley's pragmas (WAL journal, NORMAL synchronous, a busy
// timeout) and an optional schema applied to every connection.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDir, "snapshots.db"),
//	    Schema: schema,
//	    Logger: logger,
//	})
//	...
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// Connections are not safe for concurrent use; each goroutine takes
// its own.
package sqlitepool
