// Package cookiecodec converts between the raw "name=value; name2=value2"
// cookie-string form used by marketplace web sessions and a typed entries
// map, and derives the stable device identifier the marketplace token API
// expects alongside a cookie set.
//
// All functions are pure: they never touch the network, the filesystem or
// any shared state, which keeps them trivially safe for concurrent use.
//
// # Usage
//
//	entries, order, err := cookiecodec.Decode("unb=12345; t=abcdef")
//	if err != nil {
//	    // handle malformed cookie string
//	}
//
//	raw := cookiecodec.Encode(entries, order) // canonical serialization
//	deviceID := cookiecodec.DeviceID(entries["unb"])
//
// Decode and Encode form a round trip: encoding the result of a successful
// Decode reproduces an equivalent cookie string, with name order preserved.
package cookiecodec
