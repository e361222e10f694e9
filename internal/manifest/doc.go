// Package manifest reads and writes the files that describe a project: the
// <id>.meta.json metadata file (also embedded as the archive manifest of
// .modi.pkg archives) and the requirements.txt dependency list. Metadata is
// validated against an embedded JSON schema before use.
package manifest
