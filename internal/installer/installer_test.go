package installer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modi-labs/modi/internal/branding"
	"github.com/modi-labs/modi/internal/config"
	"github.com/modi-labs/modi/internal/prompt"
	"github.com/modi-labs/modi/internal/session"
)

// fakeInstaller writes a fixed layout into the staging site directory.
type fakeInstaller struct {
	layouts map[string][]string
	fail    map[string]bool
	calls   []string
}

func (f *fakeInstaller) Install(_ context.Context, name string, t Target) error {
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return errors.New("exit status 1")
	}
	for _, entry := range f.layouts[name] {
		p := filepath.Join(t.SiteDir(), entry)
		if strings.HasSuffix(entry, ".py") {
			if err := os.WriteFile(p, []byte("# "+entry+"\n"), 0o644); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(p, "__init__.py"), []byte("# "+entry+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

var requestsLayout = []string{
	"requests", "requests-2.31.0.dist-info",
	"urllib3", "urllib3-2.1.0.dist-info",
	"idna", "idna-3.6.dist-info",
	"certifi", "certifi-2023.11.17.dist-info",
	"charset_normalizer", "charset_normalizer-3.3.2.dist-info",
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	home := t.TempDir()
	store, err := config.Open(filepath.Join(home, ".modi.json"))
	require.NoError(t, err)

	sess, err := session.New(store,
		session.WithWorkDir(t.TempDir()),
		session.WithConfirmer(prompt.Static(true)),
		session.WithOutput(io.Discard),
	)
	require.NoError(t, err)
	sess.Python.WithVersion("3.11")
	return sess
}

func TestParseRequests(t *testing.T) {
	reqs, err := ParseRequests([]string{"requests[socks]>=2.31", "@numpy"})
	require.NoError(t, err)
	require.Equal(t, []Request{
		{Name: "requests[socks]>=2.31", Explicit: true, Mode: ModePrimary},
		{Name: "numpy", Explicit: true, Mode: ModeFallbackBuild},
	}, reqs)
	require.Equal(t, []string{"requests", "numpy"}, ExplicitNames(reqs))

	for _, bad := range []string{"", "two words", "@", "../escape"} {
		_, err := ParseRequests([]string{bad})
		require.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestRunRequestsReportsDependencies(t *testing.T) {
	sess := newSession(t)
	pip := &fakeInstaller{layouts: map[string][]string{"requests": requestsLayout}}
	p := NewPipeline(sess)
	p.Orchestrator = &Orchestrator{Primary: pip, Fallback: &fakeInstaller{}}

	res, err := p.Run(context.Background(), []Request{{Name: "requests", Explicit: true}}, TargetLocal)
	require.NoError(t, err)

	require.Equal(t, 1, res.Install.Installed)
	require.Equal(t, 4, res.Install.DependencyDelta)
	require.Equal(t, []string{"requests"}, res.Merge.Packages)
	require.Equal(t, []string{"certifi", "charset_normalizer", "idna", "urllib3"}, res.Merge.Dependencies)

	require.DirExists(t, filepath.Join(sess.WorkDir, "requests"))
	require.NoDirExists(t, filepath.Join(sess.WorkDir, "requests-2.31.0.dist-info"))
	require.NoDirExists(t, res.Target.Prefix)
	require.Equal(t, TargetLocal, res.Target.Mode)
}

func TestRunIntoCacheTarget(t *testing.T) {
	sess := newSession(t)
	pip := &fakeInstaller{layouts: map[string][]string{"six": {"six.py", "six-1.16.0.dist-info"}}}
	p := NewPipeline(sess)
	p.Orchestrator = &Orchestrator{Primary: pip}

	res, err := p.Run(context.Background(), []Request{{Name: "six", Explicit: true}}, TargetCache)
	require.NoError(t, err)
	require.Equal(t, TargetCache, res.Target.Mode)
	require.Equal(t, []string{"six"}, res.Merge.Packages)
	require.FileExists(t, filepath.Join(sess.CachePath(), "six.py"))
}

func TestInstallCountsFailuresAndFallsBack(t *testing.T) {
	sess := newSession(t)
	pip := &fakeInstaller{
		layouts: map[string][]string{"flask": {"flask", "jinja2", "markupsafe"}},
		fail:    map[string]bool{"broken": true, "legacy": true},
	}
	build := &fakeInstaller{
		layouts: map[string][]string{"legacy": {"legacy"}, "forced": {"forced"}},
		fail:    map[string]bool{"broken": true},
	}

	var progress []string
	o := &Orchestrator{
		Primary:  pip,
		Fallback: build,
		Progress: func(done, total int, name string) {
			require.Equal(t, 4, total)
			progress = append(progress, name)
		},
	}

	target, err := Stage(context.Background(), sess, sess.WorkDir)
	require.NoError(t, err)
	defer os.RemoveAll(target.Prefix)

	reqs := []Request{
		{Name: "broken", Explicit: true},
		{Name: "flask", Explicit: true},
		{Name: "forced", Explicit: true, Mode: ModeFallbackBuild},
		{Name: "legacy", Explicit: true},
	}
	res, err := o.Install(context.Background(), reqs, target)
	require.NoError(t, err)

	require.Equal(t, 3, res.Installed)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{"broken"}, res.FailedNames)
	require.Equal(t, 2, res.DependencyDelta)
	require.Equal(t, []string{"broken", "flask", "legacy"}, pip.calls)
	require.Equal(t, []string{"broken", "forced", "legacy"}, build.calls)
	require.Equal(t, []string{"flask", "broken", "forced", "legacy"}, progress)
}

// resolvingInstaller is a fakeInstaller that reports the release each
// package was built from.
type resolvingInstaller struct {
	fakeInstaller
	releases map[string]string
}

func (r *resolvingInstaller) ResolvedRelease(name string) (string, bool) {
	if r.fail[name] {
		return "", false
	}
	purl, ok := r.releases[name]
	return purl, ok
}

func TestInstallRecordsSourceReleases(t *testing.T) {
	sess := newSession(t)
	target, err := Stage(context.Background(), sess, sess.WorkDir)
	require.NoError(t, err)
	defer os.RemoveAll(target.Prefix)

	pip := &fakeInstaller{
		layouts: map[string][]string{"six": {"six.py"}},
		fail:    map[string]bool{"legacy": true},
	}
	build := &resolvingInstaller{
		fakeInstaller: fakeInstaller{
			layouts: map[string][]string{"legacy": {"legacy"}},
			fail:    map[string]bool{"gone": true},
		},
		releases: map[string]string{"legacy": "pkg:pypi/legacy@0.9.1", "gone": "pkg:pypi/gone@1.0"},
	}

	res, err := (&Orchestrator{Primary: pip, Fallback: build}).Install(context.Background(), []Request{
		{Name: "six", Explicit: true},
		{Name: "legacy", Explicit: true},
		{Name: "gone", Explicit: true, Mode: ModeFallbackBuild},
	}, target)
	require.NoError(t, err)

	require.Equal(t, map[string]string{"legacy": "pkg:pypi/legacy@0.9.1"}, res.Sources)
	require.Equal(t, []string{"gone"}, res.FailedNames)
}

func TestInstallStopsOnCancelledContext(t *testing.T) {
	sess := newSession(t)
	target, err := Stage(context.Background(), sess, sess.WorkDir)
	require.NoError(t, err)
	defer os.RemoveAll(target.Prefix)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pip := &fakeInstaller{}
	_, err = (&Orchestrator{Primary: pip}).Install(ctx, []Request{{Name: "six"}}, target)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pip.calls)
}

func TestStageAvoidsTakenName(t *testing.T) {
	sess := newSession(t)
	taken := filepath.Join(sess.WorkDir, branding.StagingDir())
	require.NoError(t, os.Mkdir(taken, 0o755))

	target, err := Stage(context.Background(), sess, sess.WorkDir)
	require.NoError(t, err)
	defer os.RemoveAll(target.Prefix)

	require.NotEqual(t, taken, target.Prefix)
	require.True(t, strings.HasPrefix(filepath.Base(target.Prefix), branding.StagingDir()+"-"))
	require.DirExists(t, taken)
}
