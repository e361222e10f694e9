package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/merge"
)

// ErrInstallFailed marks a package that failed both install paths.
var ErrInstallFailed = errors.New("package install failed")

// Installer installs one package into a target's staging prefix.
type Installer interface {
	Install(ctx context.Context, name string, target Target) error
}

// ReleaseResolver is implemented by installers that know which index
// release a package was built from.
type ReleaseResolver interface {
	ResolvedRelease(name string) (purl string, ok bool)
}

// Result summarizes one batch.
type Result struct {
	Installed       int
	Failed          int
	DependencyDelta int
	Succeeded       []string
	FailedNames     []string
	// Sources holds the package URL of each release built from source,
	// keyed by request name.
	Sources map[string]string
}

// Orchestrator runs a batch of requests through the primary installer and
// retries failures with the fallback installer after the primary pass.
type Orchestrator struct {
	Primary  Installer
	Fallback Installer
	// Progress, if set, is called once per package when it is finished.
	Progress func(done, total int, name string)
}

// Install processes requests in order. Per-package failures are counted in
// the Result; the error is reserved for setup failures and cancellation.
func (o *Orchestrator) Install(ctx context.Context, requests []Request, target Target) (*Result, error) {
	ctx = logger.WithName(ctx, "install")
	start := time.Now()
	site := target.SiteDir()

	if err := os.MkdirAll(site, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging site directory %s: %w", site, err)
	}

	res := &Result{}
	done := 0
	finished := func(name string) {
		done++
		if o.Progress != nil {
			o.Progress(done, len(requests), name)
		}
	}

	baseline, err := topLevel(site)
	if err != nil {
		return nil, err
	}

	var queue []Request
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if req.Mode == ModeFallbackBuild || o.Primary == nil {
			queue = append(queue, req)
			continue
		}

		logger.Debugf(ctx, "installing %s with pip", req.Name)
		installErr := o.Primary.Install(ctx, req.Name, target)

		after, err := topLevel(site)
		if err != nil {
			return res, err
		}

		if installErr != nil {
			logger.Warnf(ctx, "pip could not install %s, retrying from source: %v", req.Name, installErr)
			queue = append(queue, req)
			baseline = after
			continue
		}

		res.DependencyDelta += dependencyDelta(baseline, after)
		baseline = after

		res.Installed++
		res.Succeeded = append(res.Succeeded, req.Name)
		finished(req.Name)
	}

	for _, req := range queue {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := o.fallback(ctx, req, target); err != nil {
			logger.Errorf(ctx, "%v", err)
			res.Failed++
			res.FailedNames = append(res.FailedNames, req.Name)
		} else {
			res.Installed++
			res.Succeeded = append(res.Succeeded, req.Name)
			o.recordSource(res, req.Name)
		}
		finished(req.Name)
	}

	p := message.NewPrinter(language.English)
	logger.Info(ctx, p.Sprintf("installed %d of %d packages (%d failed, %d dependencies) in %s",
		res.Installed, len(requests), res.Failed, res.DependencyDelta, time.Since(start).Round(time.Millisecond)))

	return res, nil
}

func (o *Orchestrator) fallback(ctx context.Context, req Request, target Target) error {
	if o.Fallback == nil {
		return fmt.Errorf("%w: %s: no source-build installer configured", ErrInstallFailed, req.Name)
	}

	logger.Debugf(ctx, "building %s from source", req.Name)
	if err := o.Fallback.Install(ctx, req.Name, target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstallFailed, req.Name, err)
	}
	return nil
}

func (o *Orchestrator) recordSource(res *Result, name string) {
	r, ok := o.Fallback.(ReleaseResolver)
	if !ok {
		return
	}
	purl, ok := r.ResolvedRelease(name)
	if !ok {
		return
	}
	if res.Sources == nil {
		res.Sources = map[string]string{}
	}
	res.Sources[name] = purl
}

// topLevel returns the names of the entries directly in dir.
func topLevel(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names, nil
}

// dependencyDelta counts the non-metadata entries that appeared between
// before and after, minus one for the package itself.
func dependencyDelta(before, after map[string]bool) int {
	added := 0
	for name := range after {
		if !before[name] && !merge.IsMetadata(name) {
			added++
		}
	}
	return max(added-1, 0)
}
