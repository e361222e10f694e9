// Package bootstrap restores a working directory from an archive produced by
// the archive builder.
//
// A restore finds the archive by name stem, validates it completely, and only
// then touches the destination. With cleanup the destination is emptied
// first (after confirmation, keeping the entry script); without it the
// archive is merged on top of what is there. Metadata and requirements.txt
// are regenerated from the archive manifest when one is present.
package bootstrap
