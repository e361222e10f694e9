// Package archive builds portable archives of a working directory and reads
// them back. Three formats are supported: gzip-tar (.tar.gz), zip (.zip) and
// .modi.pkg, a gzip-tar carrying a metadata manifest in its root folder.
// Every archive holds exactly one root folder named after the archive.
//
// Reading is two-phase: Inspect decodes the whole archive and validates it
// without touching the filesystem, and Extract only writes once that passed.
package archive
