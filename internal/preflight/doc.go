// Package preflight runs environment checks before the daemon starts work:
// directory access, artifact store configuration, and external binaries.
// Results are advisory and surfaced through startup logs and the config
// validate command.
package preflight
