// Package keeper maintains a marketplace session credential: it owns the
// current credential record, probes its validity against the marketplace
// token API, and refreshes it in the background before the session goes
// stale.
//
// # Architecture
//
// A Keeper orchestrates three collaborators behind small interfaces:
//
//   - a credential.Store persists the record across restarts,
//   - a Validator answers "does this session still authenticate",
//   - a Strategy produces a fresh cookie set when refresh is needed.
//
// Two strategies ship out of the box. PassiveStrategy re-requests the target
// origin with the current cookies and harvests reissued Set-Cookie headers:
// cheap, but it only works while the server reissues cookies unconditionally.
// BrowserStrategy replays the login through a headless Chrome instance and
// extracts the resulting cookie jar: heavier, but it also recovers sessions
// the passive path cannot. They are interchangeable behind the Strategy
// contract and selected at construction time.
//
// # Validity policy
//
// Status reports two distinct signals: AuthValid (the validator accepted the
// session) and Stale (the record is older than the expiry threshold).
// CheckValid collapses them the way the background loop consumes them: a
// session is due for refresh when it no longer authenticates or when it has
// been in use long enough that refreshing proactively is cheaper than
// risking a mid-operation expiry.
//
// # Usage
//
//	store := credential.NewFileStore("cookie.json")
//	k := keeper.New(store,
//	    keeper.WithValidator(validator),
//	    keeper.WithStrategy(strategy),
//	)
//
//	if !k.Load(ctx) {
//	    // no persisted record and no environment fallback
//	}
//
//	k.StartAutoRefresh()
//	defer k.StopAutoRefresh()
//
// The background loop treats every failure as recoverable: a failed refresh
// keeps the previous record, a panicking iteration is recovered and followed
// by an error backoff, and the loop only exits when stopped.
package keeper
