// Package scaffold renders the runtime shim (the entry script) from an
// embedded template. The shim is written into the global cache when the
// config is first created, and archives carry a copy when their sources
// import it.
package scaffold
