package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/dailyrun/internal/logging"
)

// Runner executes a host command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s %s: %w", name, args[0], err)
		}
		return "", fmt.Errorf("%s %s: %w: %s", name, args[0], err, msg)
	}
	return stdout.String(), nil
}

// DockerPlatform provisions sandboxes as detached Docker containers. The
// container's main process is a sleep for the policy timeout and the
// container is started with --rm, so Docker reclaims it at the deadline.
type DockerPlatform struct {
	Binary string
	Runner Runner
	Now    func() time.Time
}

// NewDockerPlatform creates a platform that shells out to the docker CLI.
func NewDockerPlatform(binary string) *DockerPlatform {
	if binary == "" {
		binary = "docker"
	}
	return &DockerPlatform{Binary: binary, Runner: execRunner{}, Now: time.Now}
}

func (d *DockerPlatform) Create(ctx context.Context, spec ImageSpec, opts CreateOptions) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return Handle{}, err
	}
	if opts.Policy.Timeout <= 0 {
		return Handle{}, fmt.Errorf("sandbox timeout must be positive")
	}

	tag := spec.Tag(opts.App)
	log := logging.With("app", opts.App, "image", tag)

	// Build from the rendered Dockerfile on stdin with the local dir as context
	log.Debug("building image", "context", spec.Mount().LocalDir)
	_, err := d.Runner.Run(ctx, strings.NewReader(spec.Dockerfile()), d.Binary,
		"build", "--quiet", "-t", tag, "-f", "-", spec.Mount().LocalDir)
	if err != nil {
		return Handle{}, fmt.Errorf("building image: %w", err)
	}

	name := fmt.Sprintf("%s-%s", strings.ToLower(opts.App), uuid.New().String()[:8])
	args := []string{
		"run", "--detach", "--rm",
		"--name", name,
		"--label", "dailyrun.app=" + opts.App,
		"--workdir", spec.Mount().RemotePath,
	}
	if opts.Policy.MaxMemory != "" {
		args = append(args, "--memory", opts.Policy.MaxMemory)
	}
	if !opts.Policy.Network {
		args = append(args, "--network=none")
	}
	args = append(args, tag, "sleep", fmt.Sprintf("%d", int64(opts.Policy.Timeout.Seconds())))

	created := d.Now()
	out, err := d.Runner.Run(ctx, nil, d.Binary, args...)
	if err != nil {
		return Handle{}, fmt.Errorf("starting container: %w", err)
	}

	id := strings.TrimSpace(out)
	if id == "" {
		return Handle{}, fmt.Errorf("starting container: docker returned no container id")
	}
	log.Debug("container started", "container", id, "name", name)

	return Handle{
		ID:       id,
		Image:    tag,
		Deadline: opts.Policy.Deadline(created),
	}, nil
}

func (d *DockerPlatform) Exec(ctx context.Context, h Handle, argv ...string) error {
	if len(argv) == 0 {
		return fmt.Errorf("exec: empty command")
	}
	args := append([]string{"exec", "--detach", h.ID}, argv...)
	if _, err := d.Runner.Run(ctx, nil, d.Binary, args...); err != nil {
		return fmt.Errorf("exec in %s: %w", h.ID, err)
	}
	return nil
}
