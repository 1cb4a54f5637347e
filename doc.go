// Package redislite provides a small RESP-compatible key-value server.
//
// An Engine loads an optional RDB snapshot into an in-memory expiring store
// and serves PING, ECHO, SET, GET, KEYS, CONFIG, INFO and Lua scripting
// commands over TCP.
//
// Basic usage:
//
//	engine, err := redislite.New(
//		redislite.WithPort(6379),
//		redislite.WithDir("/var/lib/redis"),
//		redislite.WithDBFilename("dump.rdb"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if err := engine.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
//	result := engine.LoadResult()
//	fmt.Printf("Loaded %d keys\n", result.Stats.Keys)
//
// A missing or unreadable snapshot is reported through LoadResult and the
// logger; the engine then starts with an empty store.
package redislite
