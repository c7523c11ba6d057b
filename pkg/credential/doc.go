// Package credential models a marketplace session credential: the cookie
// set, its canonical string form, the derived device identifier and the time
// of the last successful refresh. It also provides pluggable persistence.
//
// # Record
//
// A Record is immutable by convention: constructors compute the Raw string
// from the entries map, so the two never diverge. Code that needs a modified
// record builds a new one instead of mutating in place.
//
// The JSON form matches the legacy on-disk layout:
//
//	{
//	  "cookies": {"unb": "12345", "t": "abcdef"},
//	  "cookies_str": "unb=12345; t=abcdef",
//	  "device_id": "0b7272f3-9d2f-5c4e-a9d1-3f7f0a2b6c1d",
//	  "last_refresh_time": 1756100000.123
//	}
//
// # Stores
//
// Any datastore that satisfies the Store interface can persist records. Two
// implementations ship out of the box: FileStore (atomic JSON file writes,
// optional encryption at rest) and RedisStore (single key, optional TTL).
// A record can also be bootstrapped from the process environment via FromEnv
// when no persisted state exists yet.
package credential
