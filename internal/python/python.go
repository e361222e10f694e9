package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// ErrInterpreterNotFound is returned when the configured interpreter is not on PATH.
var ErrInterpreterNotFound = errors.New("python interpreter not found")

// Runtime drives one Python interpreter.
type Runtime struct {
	// Python is the interpreter command or path (e.g. "python3").
	Python string
	// Stdout and Stderr receive installer output; both default to io.Discard.
	Stdout io.Writer
	Stderr io.Writer

	version string
}

// New returns a Runtime for the given interpreter.
func New(python string) *Runtime {
	if python == "" {
		python = "python3"
	}
	return &Runtime{Python: python}
}

// WithVersion pins the interpreter version so SitePath does not query it.
func (r *Runtime) WithVersion(version string) *Runtime {
	r.version = version
	return r
}

// ExitError reports a non-zero installer exit status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Version returns the interpreter's "major.minor" version, queried once.
func (r *Runtime) Version(ctx context.Context) (string, error) {
	if r.version != "" {
		return r.version, nil
	}

	bin, err := r.lookPath()
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-c", `import sys; print("%d.%d" % sys.version_info[:2])`)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("querying %s version: %w", r.Python, err)
	}

	r.version = strings.TrimSpace(out.String())
	return r.version, nil
}

// SitePath returns the site-packages subpath for this interpreter.
func (r *Runtime) SitePath(ctx context.Context) (string, error) {
	if goruntime.GOOS == "windows" {
		return SitePathFor("windows", ""), nil
	}

	v, err := r.Version(ctx)
	if err != nil {
		return "", err
	}
	return SitePathFor(goruntime.GOOS, v), nil
}

// SitePathFor returns the site-packages subpath used under a --prefix install.
func SitePathFor(goos, version string) string {
	if goos == "windows" {
		return filepath.Join("Lib", "site-packages")
	}
	return filepath.Join("lib", "python"+version, "site-packages")
}

// PipInstall runs `python -m pip install` for one package into prefix.
func (r *Runtime) PipInstall(ctx context.Context, pkg, prefix, site string) error {
	args := []string{
		"-m", "pip", "install",
		"--quiet",
		"--disable-pip-version-check",
		"--ignore-installed",
		"--no-warn-script-location",
		pkg,
		"--prefix", prefix,
	}
	return r.run(ctx, "", prefix, site, args...)
}

// SetupInstall runs `python setup.py install` inside srcDir into prefix.
func (r *Runtime) SetupInstall(ctx context.Context, srcDir, prefix, site string) error {
	return r.run(ctx, srcDir, prefix, site, "setup.py", "--quiet", "install", "--prefix", prefix)
}

func (r *Runtime) run(ctx context.Context, dir, prefix, site string, args ...string) error {
	bin, err := r.lookPath()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PYTHONPATH="+filepath.Join(prefix, site))

	var stderrBuf bytes.Buffer
	cmd.Stdout = orDiscard(r.Stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(r.Stderr), &stderrBuf)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				Command:  filepath.Base(bin) + " " + strings.Join(args[:min(len(args), 3)], " "),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderrBuf.String(),
			}
		}
		return fmt.Errorf("running %s: %w", r.Python, err)
	}

	return nil
}

func (r *Runtime) lookPath() (string, error) {
	bin, err := exec.LookPath(r.Python)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInterpreterNotFound, r.Python, err)
	}
	return bin, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
