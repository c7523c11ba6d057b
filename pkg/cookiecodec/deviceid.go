package cookiecodec

import "github.com/google/uuid"

// deviceNamespace scopes derived device identifiers to this toolkit so the
// same user id never collides with UUIDs derived elsewhere.
var deviceNamespace = uuid.MustParse("9f2c1a4e-6b7d-4c3a-8e5f-2d1b0a9c8e7f")

// DeviceID derives the pseudo-device identifier the marketplace token API
// associates with a session. The result is a UUIDv5 of the user id, so it is
// stable across processes and restarts for the same user. An empty user id
// yields an empty device id, signalling that no identity could be derived.
func DeviceID(userID string) string {
	if userID == "" {
		return ""
	}
	return uuid.NewSHA1(deviceNamespace, []byte(userID)).String()
}
