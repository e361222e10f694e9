// Package project keeps the registry of project directories stored in the
// config file. Every registered project also carries an <id>.meta.json
// metadata file and a requirements.txt inside its directory; the registry
// keeps all three in step.
package project
