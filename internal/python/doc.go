// Package python locates the Python interpreter and runs the external
// installers modi delegates to: pip for the primary path and setup.py for
// source builds. It also derives the site-packages subpath under an install
// prefix for the interpreter in use.
package python
