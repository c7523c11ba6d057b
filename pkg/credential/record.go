package credential

import (
	"encoding/json"
	"errors"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/dmitrymomot/cookiekeeper/pkg/cookiecodec"
)

// Record is a snapshot of an authenticated marketplace session.
// Raw is always the canonical serialization of Entries in Order; constructors
// enforce this, so the two cannot diverge in a completed record.
type Record struct {
	Entries       map[string]string
	Order         []string
	Raw           string
	DeviceID      string
	LastRefreshAt time.Time
}

// New builds a record from a cookie entries map. Order controls serialization
// determinism; names missing from it are appended sorted. Returns
// ErrEmptyRecord for an empty entries map.
func New(entries map[string]string, order []string, deviceID string) (*Record, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRecord
	}
	return &Record{
		Entries:  maps.Clone(entries),
		Order:    slices.Clone(order),
		Raw:      cookiecodec.Encode(entries, order),
		DeviceID: deviceID,
	}, nil
}

// FromRaw builds a record by decoding a raw cookie string. The device id is
// derived from the value of userIDCookie when that cookie is present.
func FromRaw(raw, userIDCookie string) (*Record, error) {
	entries, order, err := cookiecodec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyRecord
	}
	return &Record{
		Entries:  entries,
		Order:    order,
		Raw:      cookiecodec.Encode(entries, order),
		DeviceID: cookiecodec.DeviceID(entries[userIDCookie]),
	}, nil
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal maps to mutation.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Entries = maps.Clone(r.Entries)
	clone.Order = slices.Clone(r.Order)
	return &clone
}

// Age reports how long ago the record was last refreshed.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.LastRefreshAt)
}

// recordJSON mirrors the legacy persisted layout.
type recordJSON struct {
	Cookies         map[string]string `json:"cookies"`
	CookiesStr      string            `json:"cookies_str"`
	DeviceID        *string           `json:"device_id"`
	LastRefreshTime float64           `json:"last_refresh_time"`
}

// MarshalJSON serializes the record in the legacy file schema, with the
// refresh timestamp as float unix seconds and a null device id when none was
// derived.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Cookies:    r.Entries,
		CookiesStr: r.Raw,
	}
	if r.DeviceID != "" {
		out.DeviceID = &r.DeviceID
	}
	if !r.LastRefreshAt.IsZero() {
		out.LastRefreshTime = float64(r.LastRefreshAt.UnixNano()) / float64(time.Second)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a record from the legacy schema. The cookie string
// is authoritative when present since it carries name order; the cookies map
// is the fallback for files written by tools that omit the string form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Join(ErrCorruptRecord, err)
	}

	var (
		entries map[string]string
		order   []string
	)
	if in.CookiesStr != "" {
		var err error
		entries, order, err = cookiecodec.Decode(in.CookiesStr)
		if err != nil {
			return errors.Join(ErrCorruptRecord, err)
		}
	} else if len(in.Cookies) > 0 {
		entries = maps.Clone(in.Cookies)
	} else {
		return ErrCorruptRecord
	}

	r.Entries = entries
	r.Order = order
	r.Raw = cookiecodec.Encode(entries, order)
	if in.DeviceID != nil {
		r.DeviceID = *in.DeviceID
	} else {
		r.DeviceID = ""
	}
	if in.LastRefreshTime > 0 {
		sec, frac := math.Modf(in.LastRefreshTime)
		r.LastRefreshAt = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	} else {
		r.LastRefreshAt = time.Time{}
	}
	return nil
}
