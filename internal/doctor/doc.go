// Package doctor checks the local installation: the config file, the global
// cache, the runtime shim, the Python interpreter, leftover staging
// directories and the registered projects. With fix enabled it repairs what
// it can.
package doctor
