package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// runTask drives one package through the state machine:
// Pending -> SourceReady -> ToolchainReady -> Built -> Installed, with the
// Cached shortcut taken from Pending when the stamp or artifact cache hits.
func (o *Orchestrator) runTask(ctx context.Context, task *domain.BuildTask, state *runState) taskResult {
	started := time.Now()
	res := taskResult{name: task.Name, status: domain.StatusFailed}
	fail := func(err error) taskResult {
		res.err = err
		res.duration = time.Since(started)
		return res
	}

	spec := state.res.Specs[task.Name]

	sink, err := o.layout.OpenLog(task.Name)
	if err != nil {
		return fail(zerr.Wrap(err, "failed to open build log"))
	}
	defer sink.Close() //nolint:errcheck // best effort close of log sink

	options, err := domain.MergeOptions(spec.Options, state.opts.PackageOptions[task.Name])
	if err != nil {
		return fail(err)
	}

	kind, err := spec.Source.Kind()
	if err != nil {
		return fail(err)
	}

	// Branch refs are moving targets: the commit has to be resolved before a
	// meaningful fingerprint exists. Tags, pinned commits and digest sources
	// fingerprint without touching the network.
	sourceReady := false
	if kind == domain.SourceGit && spec.Source.Ref.IsBranch() {
		res.commit, err = o.prepareSource(ctx, spec, kind, task)
		if err != nil {
			return fail(err)
		}
		sourceReady = true
	}

	digest := sourceDigest(spec, res.commit)

	patchDigests, err := o.patchDigests(spec)
	if err != nil {
		return fail(err)
	}

	fp := o.prints.Fingerprint(domain.FingerprintInput{
		Name:            task.Name,
		Version:         task.Version,
		SourceDigest:    digest,
		PatchDigests:    patchDigests,
		Config:          serializeBuildConfig(spec, options),
		DepFingerprints: state.depFingerprints(task.Deps),
		Target:          state.opts.Board.Target,
		ToolchainID:     toolchainKey(spec.Build.Toolchain, state.opts.Board.Target, state.opts.ToolchainVersion),
	})
	res.fp = fp
	task.Fingerprint = fp

	if err := o.checkLock(state, task, digest); err != nil {
		return fail(err)
	}

	if !state.opts.Force {
		if hit, err := o.tryCached(task, fp); err != nil {
			o.logger.Warn("cache lookup failed, rebuilding: " + err.Error())
		} else if hit {
			res.status = domain.StatusCached
			res.bytes = dirSize(task.StageDir)
			res.duration = time.Since(started)
			return res
		}
	}

	if !sourceReady {
		res.commit, err = o.prepareSource(ctx, spec, kind, task)
		if err != nil {
			return fail(err)
		}
	}
	state.setStatus(task.Name, domain.StatusSourceReady)

	compiler, err := o.toolchains.Resolve(ctx, spec.Build.Toolchain, state.opts.Board.Target)
	if err != nil {
		return fail(err)
	}
	res.compiler = compiler
	state.setStatus(task.Name, domain.StatusToolchainReady)

	if err := o.checkLockToolchain(state, task, compiler); err != nil {
		return fail(err)
	}

	env := o.buildEnv(task, compiler, options, state)
	if err := os.MkdirAll(task.StageDir, 0o750); err != nil {
		return fail(zerr.Wrap(err, "failed to create staging directory"))
	}

	if err := o.runSteps(ctx, buildSteps(spec), env, o.layout.SrcDir(task.Name), sink); err != nil {
		return fail(err)
	}
	state.setStatus(task.Name, domain.StatusBuilt)

	if err := o.install(ctx, spec, task, env, sink); err != nil {
		return fail(err)
	}

	res.bytes = dirSize(task.StageDir)
	o.registerBuild(task, spec, fp)

	res.status = domain.StatusInstalled
	res.duration = time.Since(started)
	return res
}

// tryCached checks the incremental stamp and the artifact store. A stamp hit
// with an intact staging tree or a cache restore both short-circuit to
// Cached with zero build-step executions.
func (o *Orchestrator) tryCached(task *domain.BuildTask, fp domain.Fingerprint) (bool, error) {
	stamp, err := o.stamps.Get(task.Name)
	if err == nil && stamp != nil && stamp.Fingerprint == fp {
		if _, statErr := os.Stat(task.StageDir); statErr == nil {
			return true, nil
		}
	}

	art, err := o.artifacts.Get(fp)
	if err != nil {
		return false, err
	}
	if art == nil {
		return false, nil
	}
	if err := o.artifacts.Restore(fp, task.StageDir); err != nil {
		return false, err
	}
	// Refresh the stamp so the next run skips the store round trip.
	_ = o.stamps.Put(domain.Stamp{Name: task.Name, Version: task.Version, Fingerprint: fp})
	return true, nil
}

// prepareSource makes the declared source present and checksum-valid in the
// package's source directory. It returns the resolved commit for git sources.
func (o *Orchestrator) prepareSource(ctx context.Context, spec *domain.PackageSpec, kind domain.SourceKind, task *domain.BuildTask) (string, error) {
	srcDir := o.layout.SrcDir(task.Name)
	if err := os.MkdirAll(srcDir, 0o750); err != nil {
		return "", zerr.Wrap(err, "failed to create source directory")
	}

	switch kind {
	case domain.SourceGit:
		return o.git.Clone(ctx, spec.Source.Git, spec.Source.Ref, srcDir)

	case domain.SourceURL:
		archive := filepath.Join(o.layout.SourcesDir(), archiveName(spec.Source.URL))
		if err := o.downloader.Fetch(ctx, spec.Source.URL, archive, spec.Source.SHA256, false); err != nil {
			return "", err
		}
		return "", o.unpackArchive(ctx, archive, srcDir)

	case domain.SourceFiles:
		for _, f := range spec.Source.Files {
			name := f.Filename
			if name == "" {
				name = filepath.Base(f.URL)
			}
			if err := o.downloader.Fetch(ctx, f.URL, filepath.Join(srcDir, name), f.SHA256, false); err != nil {
				return "", err
			}
		}
		return "", nil
	}
	return "", zerr.With(domain.ErrInvalidSource, "kind", string(kind))
}

// unpackArchive extracts tarballs into the source dir; single files are
// copied as-is.
func (o *Orchestrator) unpackArchive(ctx context.Context, archive, srcDir string) error {
	if !isTarball(archive) {
		data, err := os.ReadFile(archive) //nolint:gosec // path from project layout
		if err != nil {
			return zerr.Wrap(err, "failed to read source file")
		}
		return os.WriteFile(filepath.Join(srcDir, filepath.Base(archive)), data, 0o644) //nolint:gosec
	}
	step := domain.BuildStep{Run: "tar", Args: []string{"-xf", archive, "-C", srcDir, "--strip-components=1"}}
	return o.executor.Execute(ctx, step, os.Environ(), srcDir, io.Discard)
}

// archiveName keys shared source downloads by the full URL: two sources can
// carry the same basename without sharing bytes.
func archiveName(url string) string {
	return fmt.Sprintf("%016x-%s", xxhash.Sum64String(url), filepath.Base(url))
}

func isTarball(path string) bool {
	for _, ext := range []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// checkLock enforces the source digest against the lock entry before any
// build step executes.
func (o *Orchestrator) checkLock(state *runState, task *domain.BuildTask, digest string) error {
	if state.lock == nil {
		return nil
	}
	entry := state.lock.Packages[task.Name]
	if entry.Checksum != "" && digest != "" && entry.Checksum != digest {
		err := zerr.With(domain.ErrLockMismatch, "package", task.Name)
		err = zerr.With(err, "locked_checksum", entry.Checksum)
		return zerr.With(err, "resolved_checksum", digest)
	}
	return nil
}

func (o *Orchestrator) checkLockToolchain(state *runState, task *domain.BuildTask, compiler *domain.Compiler) error {
	if state.lock == nil {
		return nil
	}
	entry := state.lock.Packages[task.Name]
	if entry.Toolchain != "" && entry.Toolchain != compiler.ID() {
		err := zerr.With(domain.ErrLockMismatch, "package", task.Name)
		err = zerr.With(err, "locked_toolchain", entry.Toolchain)
		return zerr.With(err, "resolved_toolchain", compiler.ID())
	}
	return nil
}

// buildEnv assembles the isolated environment copy for one package:
// compiler, target, staging dirs, one DEP_* variable per build-time
// dependency, one OPT_* per option and one BOARD_* per board option.
func (o *Orchestrator) buildEnv(task *domain.BuildTask, compiler *domain.Compiler, options map[string]string, state *runState) *domain.BuildEnv {
	depDirs := make(map[string]string, len(task.Deps))
	for _, dep := range task.Deps {
		depDirs[dep] = o.layout.StageDir(dep)
	}
	return &domain.BuildEnv{
		Compiler:     *compiler,
		CPU:          state.opts.Board.CPU,
		SrcDir:       o.layout.SrcDir(task.Name),
		DestDir:      task.StageDir,
		Prefix:       "/usr",
		Jobs:         state.opts.Jobs,
		DepDirs:      depDirs,
		Options:      options,
		BoardOptions: state.opts.Board.Options,
	}
}

// runSteps executes patch application and build steps in order. Any non-zero
// step fails the package; steps are never retried.
func (o *Orchestrator) runSteps(ctx context.Context, steps []domain.BuildStep, env *domain.BuildEnv, dir string, sink io.Writer) error {
	environ := append(os.Environ(), env.Environ()...)
	if env.Compiler.Root != "" {
		environ = append(environ, "PATH="+filepath.Join(env.Compiler.Root, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	for _, step := range steps {
		if err := o.executor.Execute(ctx, step, environ, dir, sink); err != nil {
			return err
		}
	}
	return nil
}

// install stages the package output: a custom script, declarative copy
// rules, or the build system's default install convention.
func (o *Orchestrator) install(ctx context.Context, spec *domain.PackageSpec, task *domain.BuildTask, env *domain.BuildEnv, sink io.Writer) error {
	switch {
	case spec.Install.Script != "":
		step := domain.BuildStep{Run: spec.Install.Script}
		return o.runSteps(ctx, []domain.BuildStep{step}, env, o.layout.SrcDir(task.Name), sink)

	case len(spec.Install.Copy) > 0:
		for _, rule := range spec.Install.Copy {
			src := filepath.Join(o.layout.SrcDir(task.Name), rule.Src)
			dst := filepath.Join(task.StageDir, rule.Dst)
			if err := copyFile(src, dst); err != nil {
				return zerr.With(zerr.Wrap(err, "install copy failed"), "src", rule.Src)
			}
		}
		return nil

	default:
		steps := defaultInstallSteps(spec)
		if len(steps) == 0 {
			return nil
		}
		return o.runSteps(ctx, steps, env, o.layout.SrcDir(task.Name), sink)
	}
}

// registerBuild publishes a successful build to the artifact store and the
// stamp store. Store failures degrade to a warning: the cache is an
// optimization, not a correctness requirement.
func (o *Orchestrator) registerBuild(task *domain.BuildTask, spec *domain.PackageSpec, fp domain.Fingerprint) {
	meta := ports.Artifact{
		Fingerprint: fp,
		Package:     task.Name,
		Version:     spec.Version,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.artifacts.Put(fp, task.StageDir, meta); err != nil {
		o.logger.Warn("failed to store build artifact: " + err.Error())
	}
	if err := o.stamps.Put(domain.Stamp{Name: task.Name, Version: task.Version, Fingerprint: fp}); err != nil {
		o.logger.Warn("failed to write build stamp: " + err.Error())
	}
}

func (o *Orchestrator) patchDigests(spec *domain.PackageSpec) ([]string, error) {
	digests := make([]string, 0, len(spec.Build.Patches))
	for _, patch := range spec.Build.Patches {
		d, err := o.verifier.FileDigest(o.layout.PatchPath(patch))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to hash patch"), "patch", patch)
		}
		digests = append(digests, d)
	}
	return digests, nil
}

// buildSteps expands a predefined build-system type into its conventional
// step list, or returns the explicit custom steps.
func buildSteps(spec *domain.PackageSpec) []domain.BuildStep {
	b := spec.Build
	steps := make([]domain.BuildStep, 0, len(b.Patches)+4)
	for _, patch := range b.Patches {
		steps = append(steps, domain.BuildStep{Run: "patch", Args: []string{"-p1", "-i", patch}})
	}

	switch b.System {
	case "autotools":
		steps = append(steps,
			domain.BuildStep{Run: "sh", Args: []string{"-c", "./configure --host=$TARGET --prefix=$PREFIX " + strings.Join(b.ConfigureArgs, " ")}},
			domain.BuildStep{Run: "sh", Args: []string{"-c", "make -j$JOBS " + strings.Join(b.MakeArgs, " ")}},
		)
	case "cmake":
		steps = append(steps,
			domain.BuildStep{Run: "sh", Args: []string{"-c", "cmake -S . -B build -DCMAKE_INSTALL_PREFIX=$PREFIX " + strings.Join(b.ConfigureArgs, " ")}},
			domain.BuildStep{Run: "sh", Args: []string{"-c", "cmake --build build -j $JOBS"}},
		)
	case "meson":
		steps = append(steps,
			domain.BuildStep{Run: "sh", Args: []string{"-c", "meson setup build --prefix=$PREFIX " + strings.Join(b.ConfigureArgs, " ")}},
			domain.BuildStep{Run: "sh", Args: []string{"-c", "meson compile -C build -j $JOBS"}},
		)
	case "make":
		steps = append(steps, domain.BuildStep{Run: "sh", Args: []string{"-c", "make -j$JOBS " + strings.Join(b.MakeArgs, " ")}})
	default:
		steps = append(steps, b.Steps...)
	}
	return steps
}

func defaultInstallSteps(spec *domain.PackageSpec) []domain.BuildStep {
	switch spec.Build.System {
	case "autotools", "make":
		return []domain.BuildStep{{Run: "sh", Args: []string{"-c", "make DESTDIR=$DESTDIR install"}}}
	case "cmake":
		return []domain.BuildStep{{Run: "sh", Args: []string{"-c", "DESTDIR=$DESTDIR cmake --install build"}}}
	case "meson":
		return []domain.BuildStep{{Run: "sh", Args: []string{"-c", "DESTDIR=$DESTDIR meson install -C build"}}}
	default:
		return nil
	}
}

// sourceDigest is the content identity of a declared source: the pinned
// sha256 for URL sources, the resolved commit (or declared ref) for git, and
// the joined per-file digests for multi-file sources.
func sourceDigest(spec *domain.PackageSpec, commit string) string {
	switch {
	case spec.Source.URL != "":
		return spec.Source.SHA256
	case spec.Source.Git != "":
		if commit != "" {
			return commit
		}
		return spec.Source.Ref.String()
	default:
		digests := make([]string, 0, len(spec.Source.Files))
		for _, f := range spec.Source.Files {
			digests = append(digests, f.SHA256)
		}
		return strings.Join(digests, ",")
	}
}

// serializeBuildConfig renders the build configuration deterministically for
// fingerprinting: map iteration order must never leak into the digest.
func serializeBuildConfig(spec *domain.PackageSpec, options map[string]string) string {
	var b strings.Builder
	b.WriteString("system=" + spec.Build.System + "\n")
	for _, step := range spec.Build.Steps {
		b.WriteString("step=" + step.Run + " " + strings.Join(step.Args, " ") + "\n")
	}
	b.WriteString("configure=" + strings.Join(spec.Build.ConfigureArgs, " ") + "\n")
	b.WriteString("make=" + strings.Join(spec.Build.MakeArgs, " ") + "\n")

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("opt." + k + "=" + options[k] + "\n")
	}
	return b.String()
}

// toolchainKey is the pure toolchain identity used in fingerprints. It is
// derived from the declaration plus the probed default-compiler version, so
// cached packages never trigger a toolchain download while a compiler upgrade
// still changes the fingerprint.
func toolchainKey(tc domain.Toolchain, target, defaultVersion string) string {
	switch tc.Normalize() {
	case domain.ToolchainAuto:
		return "gcc:" + target + ":" + tc.Libc + ":" + tc.Release
	case domain.ToolchainExplicit:
		keys := make([]string, 0, len(tc.URLs))
		for host, url := range tc.URLs {
			keys = append(keys, host+"="+url)
		}
		sort.Strings(keys)
		return "gcc-url:" + strings.Join(keys, ",")
	default:
		return "default:" + target + "@" + defaultVersion
	}
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // size is best effort
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src) //nolint:gosec // paths from package definition
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()) //nolint:gosec
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
