// Package orchestrator drives resolved packages through their build state
// machine under bounded concurrency.
package orchestrator

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// Options configure one build run.
type Options struct {
	// Jobs bounds the worker pool; 0 means host parallelism.
	Jobs int

	// Locked enforces the lock file: any divergence in resolved version,
	// source digest or toolchain identity fails before build steps run.
	Locked bool

	// Force rebuilds even when the stamp or cache matches.
	Force bool

	Board domain.Board

	// PackageOptions are per-package option overrides from the manifest.
	PackageOptions map[string]map[string]string

	// ForgeVersion fills the lock file header.
	ForgeVersion string

	// ToolchainVersion is the probed default-compiler version. It fills the
	// lock file header and keys the build fingerprint of packages on the
	// default toolchain, so a compiler upgrade invalidates their stamps and
	// cached artifacts.
	ToolchainVersion string
}

// Orchestrator coordinates source fetch, toolchain resolution, build steps,
// staging and caching for every package of a plan. All collaborators are
// injected; the only state shared across workers is the artifact store and
// the toolchain cache, both of which synchronize internally.
type Orchestrator struct {
	executor   ports.StepExecutor
	toolchains ports.ToolchainResolver
	artifacts  ports.ArtifactStore
	stamps     ports.StampStore
	downloader ports.Downloader
	git        ports.GitFetcher
	verifier   ports.Verifier
	prints     ports.Fingerprinter
	locks      ports.LockStore
	logger     ports.Logger
	layout     Layout
}

// New creates an Orchestrator.
func New(
	executor ports.StepExecutor,
	toolchains ports.ToolchainResolver,
	artifacts ports.ArtifactStore,
	stamps ports.StampStore,
	downloader ports.Downloader,
	git ports.GitFetcher,
	verifier ports.Verifier,
	prints ports.Fingerprinter,
	locks ports.LockStore,
	logger ports.Logger,
	layout Layout,
) *Orchestrator {
	return &Orchestrator{
		executor:   executor,
		toolchains: toolchains,
		artifacts:  artifacts,
		stamps:     stamps,
		downloader: downloader,
		git:        git,
		verifier:   verifier,
		prints:     prints,
		locks:      locks,
		logger:     logger,
		layout:     layout,
	}
}

// Run builds every package of the resolution. The returned report covers all
// packages; err is non-nil when any requested package failed or when a
// pre-flight check (locked-mode divergence) aborts the run.
func (o *Orchestrator) Run(ctx context.Context, res *resolver.Resolution, opts Options) (*domain.BuildReport, error) {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}

	var lock *domain.LockFile
	if opts.Locked {
		var err error
		lock, err = o.loadLock(res.Plan)
		if err != nil {
			return nil, err
		}
	}

	state := newRunState(res, opts, lock)
	started := time.Now()

	for !state.done() {
		o.schedule(ctx, state)

		if state.done() {
			break
		}

		select {
		case r := <-state.results:
			state.finish(r)
		case <-ctx.Done():
			// Workers observe ctx themselves; drain what is in flight so the
			// cache and lock file stay consistent.
			for state.active > 0 {
				state.finish(<-state.results)
			}
			state.cancelRemaining(ctx.Err())
		}
	}

	report := state.report
	report.Elapsed = time.Since(started)

	if report.OK() && !opts.Locked {
		if err := o.writeLock(state, opts); err != nil {
			return report, zerr.Wrap(err, "failed to write lock file")
		}
	}

	if !report.OK() {
		return report, buildFailureError(report)
	}
	return report, nil
}

// loadLock reads the lock file and verifies every planned version against it.
// Version divergence is a hard failure before anything is scheduled.
func (o *Orchestrator) loadLock(plan *domain.BuildPlan) (*domain.LockFile, error) {
	lock, err := o.locks.Load()
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, domain.ErrLockMissing
	}
	for _, node := range plan.Nodes {
		entry, ok := lock.Packages[node.Name]
		if !ok {
			return nil, zerr.With(zerr.With(domain.ErrLockMismatch, "package", node.Name), "reason", "not in lock file")
		}
		if entry.Version != node.Version {
			err := zerr.With(domain.ErrLockMismatch, "package", node.Name)
			err = zerr.With(err, "locked_version", entry.Version)
			return nil, zerr.With(err, "resolved_version", node.Version)
		}
	}
	return lock, nil
}

// schedule starts eligible tasks in plan order while pool slots are free.
func (o *Orchestrator) schedule(ctx context.Context, state *runState) {
	for len(state.ready) > 0 && state.active < state.opts.Jobs {
		name := state.ready[0]
		state.ready = state.ready[1:]
		state.active++
		state.setStatus(name, domain.StatusPending)

		task := state.newTask(name, o.layout)
		go func() {
			state.results <- o.runTask(ctx, task, state)
		}()
	}
}

type taskResult struct {
	name     string
	status   domain.TaskStatus
	fp       domain.Fingerprint
	commit   string // resolved git commit, for the lock file
	compiler *domain.Compiler
	bytes    int64
	duration time.Duration
	err      error
}

// runState is the mutable bookkeeping of one Run call. It is only touched
// from the scheduling goroutine; workers communicate through the results
// channel.
type runState struct {
	res  *resolver.Resolution
	opts Options
	lock *domain.LockFile

	indegree map[string]int
	ready    []string // eligible, kept in plan order
	active   int
	results  chan taskResult

	statuses map[string]domain.TaskStatus
	mu       sync.RWMutex

	fingerprints map[string]domain.Fingerprint
	commits      map[string]string
	compilers    map[string]*domain.Compiler
	report       *domain.BuildReport
}

func newRunState(res *resolver.Resolution, opts Options, lock *domain.LockFile) *runState {
	s := &runState{
		res:          res,
		opts:         opts,
		lock:         lock,
		indegree:     make(map[string]int, len(res.Plan.Nodes)),
		results:      make(chan taskResult, opts.Jobs),
		statuses:     make(map[string]domain.TaskStatus, len(res.Plan.Nodes)),
		fingerprints: make(map[string]domain.Fingerprint),
		commits:      make(map[string]string),
		compilers:    make(map[string]*domain.Compiler),
		report:       domain.NewBuildReport(),
	}
	for _, node := range res.Plan.Nodes {
		s.indegree[node.Name] = len(node.Deps)
		s.statuses[node.Name] = domain.StatusPending
		if len(node.Deps) == 0 {
			s.ready = append(s.ready, node.Name)
		}
	}
	return s
}

func (s *runState) done() bool {
	return s.active == 0 && len(s.ready) == 0
}

func (s *runState) setStatus(name string, status domain.TaskStatus) {
	s.mu.Lock()
	s.statuses[name] = status
	s.mu.Unlock()
}

// Status returns the current status of a package.
func (s *runState) Status(name string) domain.TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[name]
}

// depFingerprints snapshots the fingerprints of the given (already finished)
// dependencies. Guarded because workers read while the scheduler records
// results for unrelated packages.
func (s *runState) depFingerprints(deps []string) map[string]domain.Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Fingerprint, len(deps))
	for _, dep := range deps {
		out[dep] = s.fingerprints[dep]
	}
	return out
}

func (s *runState) newTask(name string, layout Layout) *domain.BuildTask {
	node, _ := s.res.Plan.Lookup(name)
	return &domain.BuildTask{
		Name:     node.Name,
		Version:  node.Version,
		Deps:     node.Deps,
		Status:   domain.StatusPending,
		StageDir: layout.StageDir(name),
		LogPath:  layout.LogPath(name),
	}
}

// finish records a task result, releasing dependents on success and marking
// the transitive not-yet-started dependents Failed on failure.
func (s *runState) finish(r taskResult) {
	s.active--
	s.setStatus(r.name, r.status)

	node, _ := s.res.Plan.Lookup(r.name)
	s.report.Results[r.name] = domain.PackageResult{
		Name:     r.name,
		Version:  node.Version,
		Status:   r.status,
		Err:      r.err,
		Duration: r.duration,
		Bytes:    r.bytes,
	}

	if r.err != nil {
		s.blockDependents(r.name)
		return
	}

	s.mu.Lock()
	s.fingerprints[r.name] = r.fp
	s.mu.Unlock()
	if r.commit != "" {
		s.commits[r.name] = r.commit
	}
	if r.compiler != nil {
		s.compilers[r.name] = r.compiler
	}

	for _, dep := range s.dependents(r.name) {
		s.indegree[dep]--
		if s.indegree[dep] == 0 {
			s.insertReady(dep)
		}
	}
}

// blockDependents marks every not-yet-started transitive dependent of name as
// Failed with a blocked reason, without scheduling it. Running independent
// branches are untouched.
func (s *runState) blockDependents(name string) {
	queue := []string{name}
	seen := map[string]bool{name: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range s.dependents(cur) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			queue = append(queue, dep)

			if _, reported := s.report.Results[dep]; reported {
				continue
			}
			s.setStatus(dep, domain.StatusFailed)
			s.removeReady(dep)
			delete(s.indegree, dep)

			node, _ := s.res.Plan.Lookup(dep)
			s.report.Results[dep] = domain.PackageResult{
				Name:    dep,
				Version: node.Version,
				Status:  domain.StatusFailed,
				Err:     zerr.With(zerr.With(domain.ErrBlockedByDependency, "package", dep), "blocked_on", name),
			}
		}
	}
}

func (s *runState) dependents(name string) []string {
	var out []string
	for _, node := range s.res.Plan.Nodes {
		if slices.Contains(node.Deps, name) {
			out = append(out, node.Name)
		}
	}
	return out
}

// insertReady keeps the ready queue in plan order so independent packages
// start deterministically even though completion order is not.
func (s *runState) insertReady(name string) {
	pos := s.res.Plan.Position(name)
	at := len(s.ready)
	for i, existing := range s.ready {
		if s.res.Plan.Position(existing) > pos {
			at = i
			break
		}
	}
	s.ready = slices.Insert(s.ready, at, name)
}

func (s *runState) removeReady(name string) {
	if i := slices.Index(s.ready, name); i >= 0 {
		s.ready = slices.Delete(s.ready, i, i+1)
	}
}

// cancelRemaining fails everything that never started after a context cancel.
func (s *runState) cancelRemaining(cause error) {
	for _, node := range s.res.Plan.Nodes {
		if _, reported := s.report.Results[node.Name]; reported {
			continue
		}
		s.setStatus(node.Name, domain.StatusFailed)
		s.report.Results[node.Name] = domain.PackageResult{
			Name:    node.Name,
			Version: node.Version,
			Status:  domain.StatusFailed,
			Err:     zerr.Wrap(cause, "build cancelled"),
		}
	}
	s.ready = nil
}

// writeLock records the successful resolution: exact versions, source
// digests, resolved commits, dependency versions and toolchain identities.
func (o *Orchestrator) writeLock(state *runState, opts Options) error {
	lf := domain.NewLockFile(opts.ForgeVersion, opts.ToolchainVersion)

	for _, node := range state.res.Plan.Nodes {
		spec := state.res.Specs[node.Name]
		kind, err := spec.Source.Kind()
		if err != nil {
			return err
		}

		deps := make(map[string]string, len(node.Deps))
		for _, dep := range node.Deps {
			if depNode, ok := state.res.Plan.Lookup(dep); ok {
				deps[dep] = depNode.Version
			}
		}

		entry := domain.LockEntry{
			Version:      node.Version,
			Source:       domain.SourceLocator(kind, "", "", spec.Source.Git, state.commits[node.Name]),
			Checksum:     sourceDigest(spec, state.commits[node.Name]),
			Dependencies: deps,
		}
		if c := state.compilers[node.Name]; c != nil {
			entry.Toolchain = c.ID()
		}
		lf.Packages[node.Name] = entry
	}

	return o.locks.Save(lf)
}

func buildFailureError(report *domain.BuildReport) error {
	var errs error
	for _, f := range report.Failures() {
		errs = errors.Join(errs, zerr.With(zerr.Wrap(f.Err, "package failed"), "package", f.Name))
	}
	return errs
}
