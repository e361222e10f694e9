package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/manifest"
	"github.com/modi-labs/modi/internal/platform"
	"github.com/modi-labs/modi/internal/scaffold"
	"github.com/modi-labs/modi/internal/session"
)

// ErrProblems is returned by Run when problems remain after the checks.
var ErrProblems = errors.New("doctor found problems")

// Report counts check outcomes.
type Report struct {
	OK       int
	Fixed    int
	Problems int
}

type checker struct {
	w   io.Writer
	fix bool
	rep *Report
}

func (c *checker) ok(format string, args ...any) {
	c.rep.OK++
	fmt.Fprintf(c.w, "  [ OK ] "+format+"\n", args...)
}

func (c *checker) problem(tag, format string, args ...any) {
	c.rep.Problems++
	fmt.Fprintf(c.w, "  ["+tag+"] "+format+"\n", args...)
}

func (c *checker) fixed(format string, args ...any) {
	c.rep.Problems--
	c.rep.Fixed++
	fmt.Fprintf(c.w, "  [FIX ] "+format+"\n", args...)
}

// Run checks sess's installation and writes one line per check to w.
func Run(ctx context.Context, sess *session.Session, w io.Writer, fix bool) (*Report, error) {
	c := &checker{w: w, fix: fix, rep: &Report{}}

	fmt.Fprintln(w, "Installation:")
	c.checkConfig(sess.Config.Path())
	c.checkCache(sess.CachePath())
	c.checkEntryScript(sess.EntryScript, sess.CachePath())
	c.checkPython(ctx, sess)
	c.checkLeftovers(ctx, sess.CachePath())
	if sess.WorkDir != sess.CachePath() {
		c.checkLeftovers(ctx, sess.WorkDir)
	}

	fmt.Fprintln(w, "Projects:")
	c.checkProjects(sess)

	fmt.Fprintf(w, "\n%d ok, %d fixed, %d problem(s)\n", c.rep.OK, c.rep.Fixed, c.rep.Problems)

	if c.rep.Problems > 0 {
		return c.rep, fmt.Errorf("%w: %d", ErrProblems, c.rep.Problems)
	}
	return c.rep, nil
}

func (c *checker) checkConfig(path string) {
	info, err := os.Stat(path)
	if err != nil {
		c.problem("FAIL", "%s: %v", path, err)
		return
	}

	if platform.PermOK(info.Mode(), platform.FilePermSecure) {
		c.ok("%s (permissions %o)", path, info.Mode().Perm())
		return
	}

	c.problem("WARN", "%s has permissions %o (expected %o)", path, info.Mode().Perm(), platform.FilePermSecure)
	if !c.fix {
		return
	}
	if err := platform.Chmod(path, platform.FilePermSecure); err != nil {
		fmt.Fprintf(c.w, "  [FAIL] Could not fix permissions on %s: %v\n", path, err)
		return
	}
	c.fixed("Fixed permissions on %s to %o", path, platform.FilePermSecure)
}

func (c *checker) checkCache(dir string) {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		c.problem("MISS", "cache %s does not exist", dir)
		if !c.fix {
			return
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(c.w, "  [FAIL] Could not create %s: %v\n", dir, err)
			return
		}
		c.fixed("Created %s", dir)
	case err != nil:
		c.problem("FAIL", "%s: %v", dir, err)
	case !info.IsDir():
		c.problem("FAIL", "cache %s is not a directory", dir)
	default:
		c.ok("cache %s", dir)
	}
}

func (c *checker) checkEntryScript(path, cache string) {
	if _, err := os.Stat(path); err == nil {
		c.ok("entry script %s", path)
		return
	}

	c.problem("MISS", "entry script %s does not exist", path)
	if !c.fix {
		return
	}
	if _, err := scaffold.WriteEntryScript(path, scaffold.NewEntryData(cache)); err != nil {
		fmt.Fprintf(c.w, "  [FAIL] Could not write %s: %v\n", path, err)
		return
	}
	c.fixed("Wrote %s", path)
}

func (c *checker) checkPython(ctx context.Context, sess *session.Session) {
	version, err := sess.Python.Version(ctx)
	if err != nil {
		c.problem("FAIL", "python %q: %v", sess.Python.Python, err)
		return
	}
	site, err := sess.Python.SitePath(ctx)
	if err != nil {
		c.problem("FAIL", "python %s site path: %v", version, err)
		return
	}
	c.ok("python %s (%s) installs into <prefix>/%s", version, sess.Python.Python, filepath.ToSlash(site))
}

// checkLeftovers reports staging and extraction directories left behind by
// interrupted runs.
func (c *checker) checkLeftovers(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var leftovers []string
	for _, e := range entries {
		if e.IsDir() && (strings.HasPrefix(e.Name(), branding.StagingDir()) || strings.HasPrefix(e.Name(), ".modi-restore-")) {
			leftovers = append(leftovers, e.Name())
		}
	}
	if len(leftovers) == 0 {
		c.ok("no leftover staging directories in %s", dir)
		return
	}

	for _, n := range leftovers {
		path := filepath.Join(dir, n)
		c.problem("WARN", "leftover %s", path)
		if !c.fix {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			fmt.Fprintf(c.w, "  [FAIL] Could not remove %s: %v\n", path, err)
			continue
		}
		logger.Debugf(ctx, "removed leftover %s", path)
		c.fixed("Removed %s", path)
	}
}

func (c *checker) checkProjects(sess *session.Session) {
	projects := sess.Config.Config().Projects
	if len(projects) == 0 {
		fmt.Fprintln(c.w, "  (none registered)")
		return
	}

	ids := make([]string, 0, len(projects))
	for id := range projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		dir := projects[id].Directory
		if _, err := os.Stat(dir); err != nil {
			c.problem("MISS", "%s: directory %s does not exist (run '%s project unlist %s')", id, dir, branding.CLIName(), id)
			continue
		}

		path := filepath.Join(dir, manifest.MetaFileName(id))
		if _, err := manifest.ReadMeta(path); err != nil {
			c.problem("WARN", "%s: %v", id, err)
			continue
		}
		c.ok("%s (%s)", id, dir)
	}
}
