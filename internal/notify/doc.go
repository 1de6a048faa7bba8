// Package notify pushes change notifications to external targets.
//
// The Engine implements cache.Listener: every published generation whose diff
// clears the configured threshold produces one notification, delivered to all
// configured targets (Slack, Teams, generic webhook, Telegram). A cooldown
// suppresses repeat notifications so a burst of small edits upstream does not
// ping anyone more than once per window. Delivery is asynchronous and
// best-effort; failures are logged and never reach the refresh loop.
package notify
