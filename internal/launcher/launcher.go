// Package launcher starts the analytics service in a fresh sandbox.
//
// BuildImageSpec describes what the sandbox contains; Launch asks the
// platform to create it and then fires the detached startup command.
// Nothing is retried and nothing is awaited after dispatch.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/michaelbrown/dailyrun/internal/errors"
	"github.com/michaelbrown/dailyrun/internal/logging"
	"github.com/michaelbrown/dailyrun/internal/sandbox"
	"github.com/michaelbrown/dailyrun/internal/storage"
)

var (
	DefaultSystemPackages   = []string{"curl", "git", "wget", "python3-pip", "net-tools"}
	DefaultLanguagePackages = []string{"requests", "flask", "pytz", "apscheduler"}
)

// Options configures what gets launched.
type Options struct {
	App          string
	LocalDir     string // bundled into the image
	WorkspaceDir string // where LocalDir lands inside the sandbox
	Entrypoint   string // script under LocalDir, run with python3
	ImageFile    string // optional image overrides (.yaml/.toml)
	Policy       sandbox.Policy
}

// Result describes a successful launch.
type Result struct {
	LaunchID string
	Handle   sandbox.Handle
}

// Launcher creates one sandbox per Launch call.
type Launcher struct {
	platform sandbox.Platform
	store    storage.Store
	opts     Options
}

// New creates a launcher. store may be nil, in which case launches are not
// recorded.
func New(platform sandbox.Platform, store storage.Store, opts Options) *Launcher {
	return &Launcher{platform: platform, store: store, opts: opts}
}

// BuildImageSpec returns a fresh image description for opts.
func BuildImageSpec(opts Options) (sandbox.ImageSpec, error) {
	spec := sandbox.NewImage(sandbox.BaseDebianSlim).
		AptInstall(DefaultSystemPackages...).
		PipInstall(DefaultLanguagePackages...).
		AddLocalDir(opts.LocalDir, opts.WorkspaceDir)

	if opts.ImageFile != "" {
		f, err := sandbox.LoadImageFile(opts.ImageFile)
		if err != nil {
			return sandbox.ImageSpec{}, err
		}
		spec = f.Apply(spec)
	}

	if err := spec.Validate(); err != nil {
		return sandbox.ImageSpec{}, err
	}
	return spec, nil
}

// Command returns the argv dispatched inside the sandbox.
func Command(workdir, entrypoint string) []string {
	return []string{"sh", "-c", sandbox.DetachedCommand(workdir, "python3", entrypoint)}
}

// checkEntrypoint makes sure the entrypoint exists inside the bundled
// directory before anything billable is created.
func checkEntrypoint(localDir, entrypoint string) error {
	path, err := securejoin.SecureJoin(localDir, entrypoint)
	if err != nil {
		return fmt.Errorf("resolving entrypoint %q: %w", entrypoint, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("entrypoint %q not found in %s: %w", entrypoint, localDir, err)
	}
	if info.IsDir() {
		return fmt.Errorf("entrypoint %s is a directory", path)
	}
	return nil
}

// Launch builds the image spec, creates one sandbox and dispatches the
// startup command into it. Calling Launch twice creates two sandboxes.
func (l *Launcher) Launch(ctx context.Context, trigger storage.TriggerKind) (*Result, error) {
	rec := &storage.Launch{
		ID:      uuid.New().String(),
		App:     l.opts.App,
		Trigger: trigger,
		Status:  storage.StatusRunning,
	}
	log := logging.With("launch", rec.ID, "app", l.opts.App, "trigger", trigger)

	if l.store != nil {
		if err := l.store.CreateLaunch(ctx, rec); err != nil {
			log.Warn("recording launch", "error", err)
		}
	}

	res, err := l.launch(ctx, rec, log)
	if err != nil {
		rec.Status = storage.StatusFailed
		rec.Error = err.Error()
		log.Error("launch failed", "error", err)
	} else {
		rec.Status = storage.StatusStarted
		log.Info("service started", "sandbox", res.Handle.ID, "expires", res.Handle.Deadline)
	}

	if l.store != nil {
		// The caller's context may already be cancelled; the record should still land.
		if uerr := l.store.UpdateLaunch(context.WithoutCancel(ctx), rec); uerr != nil {
			log.Warn("updating launch record", "error", uerr)
		}
	}
	return res, err
}

func (l *Launcher) launch(ctx context.Context, rec *storage.Launch, log *slog.Logger) (*Result, error) {
	spec, err := BuildImageSpec(l.opts)
	if err != nil {
		return nil, errors.Config("building image spec", err)
	}
	if err := checkEntrypoint(spec.Mount().LocalDir, l.opts.Entrypoint); err != nil {
		return nil, errors.Config("checking bundle", err)
	}

	log.Debug("creating sandbox", "timeout", l.opts.Policy.Timeout)
	h, err := l.platform.Create(ctx, spec, sandbox.CreateOptions{App: l.opts.App, Policy: l.opts.Policy})
	if err != nil {
		return nil, errors.Platform("creating sandbox", err)
	}
	rec.SandboxID = h.ID
	rec.Image = h.Image
	rec.ExpiresAt = h.Deadline

	if err := l.platform.Exec(ctx, h, Command(spec.Mount().RemotePath, l.opts.Entrypoint)...); err != nil {
		return nil, errors.Platform("starting service", err)
	}

	return &Result{LaunchID: rec.ID, Handle: h}, nil
}
