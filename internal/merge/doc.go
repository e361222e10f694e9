// Package merge moves an installer's staging tree into a destination
// directory. Each top-level staged entry is classified (explicit package,
// dependency, single-file dependency, egg bundle or metadata to skip) and
// copied without ever overwriting what the destination already holds.
package merge
