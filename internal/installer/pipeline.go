package installer

import (
	"context"
	"os"

	"github.com/modi-labs/modi/internal/logger"
	"github.com/modi-labs/modi/internal/merge"
	"github.com/modi-labs/modi/internal/session"
)

// RunResult is the outcome of a full stage, install and merge pass.
type RunResult struct {
	Target  Target
	Install *Result
	Merge   *merge.Result
}

// Pipeline stages, installs and merges packages for one session.
type Pipeline struct {
	Session      *session.Session
	Orchestrator *Orchestrator
	Merger       *merge.Engine
}

// NewPipeline returns a Pipeline using pip first and a source build as the
// fallback.
func NewPipeline(sess *session.Session) *Pipeline {
	return &Pipeline{
		Session: sess,
		Orchestrator: &Orchestrator{
			Primary:  &PipInstaller{Python: sess.Python},
			Fallback: &SourceInstaller{Python: sess.Python, Index: sess.Index},
		},
		Merger: merge.New(merge.Options{}),
	}
}

// Run installs requests into the destination selected by mode.
func Run(ctx context.Context, sess *session.Session, requests []Request, mode TargetMode) (*RunResult, error) {
	return NewPipeline(sess).Run(ctx, requests, mode)
}

// Run installs requests into the destination selected by mode.
func (p *Pipeline) Run(ctx context.Context, requests []Request, mode TargetMode) (*RunResult, error) {
	return p.RunInto(ctx, requests, DestFor(p.Session, mode))
}

// RunInto installs requests into dest. The staging prefix is removed before
// returning, whatever the outcome.
func (p *Pipeline) RunInto(ctx context.Context, requests []Request, dest string) (*RunResult, error) {
	target, err := Stage(ctx, p.Session, dest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(target.Prefix); err != nil {
			logger.Warnf(ctx, "removing staging directory %s: %v", target.Prefix, err)
		}
	}()

	ctx = logger.WithKV(ctx, "dest", target.Dest)

	ires, err := p.Orchestrator.Install(ctx, requests, target)
	if err != nil {
		return nil, err
	}

	mres, err := p.Merger.Merge(ctx, target.SiteDir(), target.Dest, ExplicitNames(requests))
	if err != nil {
		return nil, err
	}

	return &RunResult{Target: target, Install: ires, Merge: mres}, nil
}

// InstallInto installs the named packages as explicit requests into dir and
// returns the merge result.
func (p *Pipeline) InstallInto(ctx context.Context, dir string, names []string) (*merge.Result, error) {
	requests := make([]Request, 0, len(names))
	for _, n := range names {
		requests = append(requests, Request{Name: n, Explicit: true})
	}

	res, err := p.RunInto(ctx, requests, dir)
	if err != nil {
		return nil, err
	}
	return res.Merge, nil
}
