// Package alert notifies an operator when the credential keeper needs human
// attention. The browser-replay strategy in particular can only restore a
// session that is still recoverable; once the marketplace demands an
// interactive login, an unattended process is stuck until someone logs in
// and captures a fresh cookie string.
//
// Alerters are best-effort by contract: the keeper logs delivery failures
// and keeps running, so implementations should not block for long.
//
// Two transports ship out of the box:
//
//   - NewWebhook posts a signed JSON event to an HTTP endpoint, with capped
//     exponential backoff retries.
//   - NewEmail sends a transactional email through Postmark.
//
// Multi fans a single event out to several alerters and joins their errors.
package alert
