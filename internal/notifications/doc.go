// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Completion and error messages can be toggled independently so an
// operator can keep failure alerts without per-video chatter.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
