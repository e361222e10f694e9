// Package cli defines the Cobra command tree for the modi CLI. Each file in
// this package registers one top-level command (install, remove, project,
// build, bootstrap, config) with the root command. Commands only parse flags,
// open the session and format output; the work happens in the internal
// packages they call.
package cli
