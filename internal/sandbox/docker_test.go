package sandbox

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type call struct {
	name  string
	args  []string
	stdin string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string // first arg -> stdout
	fail    map[string]error  // first arg -> error
}

func (f *fakeRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (string, error) {
	c := call{name: name, args: args}
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		c.stdin = string(data)
	}
	f.calls = append(f.calls, c)
	if err := f.fail[args[0]]; err != nil {
		return "", err
	}
	return f.outputs[args[0]], nil
}

func newTestPlatform(r *fakeRunner) *DockerPlatform {
	fixed := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	return &DockerPlatform{Binary: "docker", Runner: r, Now: func() time.Time { return fixed }}
}

func TestDockerCreate(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"run": "c0ffee\n"}}
	d := newTestPlatform(r)

	spec := analyticsImage()
	h, err := d.Create(context.Background(), spec, CreateOptions{App: "scheduled_analytics", Policy: DefaultPolicy()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if h.ID != "c0ffee" {
		t.Errorf("handle ID = %q, want c0ffee", h.ID)
	}
	if h.Image != spec.Tag("scheduled_analytics") {
		t.Errorf("handle image = %q", h.Image)
	}
	if want := time.Date(2026, 10, 20, 6, 0, 0, 0, time.UTC); !h.Deadline.Equal(want) {
		t.Errorf("deadline = %s, want %s", h.Deadline, want)
	}

	if len(r.calls) != 2 {
		t.Fatalf("got %d docker calls, want 2 (build, run)", len(r.calls))
	}

	build := r.calls[0]
	if build.args[0] != "build" || build.stdin != spec.Dockerfile() {
		t.Errorf("build call = %+v", build)
	}
	if last := build.args[len(build.args)-1]; last != "." {
		t.Errorf("build context = %q, want .", last)
	}

	run := strings.Join(r.calls[1].args, " ")
	for _, want := range []string{"run --detach --rm", "--label dailyrun.app=scheduled_analytics", "sleep 86400"} {
		if !strings.Contains(run, want) {
			t.Errorf("run args %q missing %q", run, want)
		}
	}
	if strings.Contains(run, "--network=none") {
		t.Error("default policy allows network")
	}
}

func TestDockerCreateRestrictedPolicy(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"run": "abc"}}
	d := newTestPlatform(r)

	policy := Policy{Timeout: time.Hour, MaxMemory: "512m"}
	if _, err := d.Create(context.Background(), analyticsImage(), CreateOptions{App: "a", Policy: policy}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	run := strings.Join(r.calls[1].args, " ")
	for _, want := range []string{"--memory 512m", "--network=none", "sleep 3600"} {
		if !strings.Contains(run, want) {
			t.Errorf("run args %q missing %q", run, want)
		}
	}
}

func TestDockerCreateBuildFailure(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{"build": errors.New("no space left on device")}}
	d := newTestPlatform(r)

	_, err := d.Create(context.Background(), analyticsImage(), CreateOptions{App: "a", Policy: DefaultPolicy()})
	if err == nil || !strings.Contains(err.Error(), "building image") {
		t.Fatalf("expected build error, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Errorf("container should not start after a failed build, got %d calls", len(r.calls))
	}
}

func TestDockerCreateRejectsInvalidSpec(t *testing.T) {
	r := &fakeRunner{}
	d := newTestPlatform(r)

	_, err := d.Create(context.Background(), NewImage(""), CreateOptions{App: "a", Policy: DefaultPolicy()})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(r.calls) != 0 {
		t.Errorf("docker should not be called, got %d calls", len(r.calls))
	}
}

func TestDockerCreateEmptyContainerID(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"run": "  \n"}}
	d := newTestPlatform(r)

	if _, err := d.Create(context.Background(), analyticsImage(), CreateOptions{App: "a", Policy: DefaultPolicy()}); err == nil {
		t.Fatal("expected error for empty container id")
	}
}

func TestDockerExec(t *testing.T) {
	r := &fakeRunner{}
	d := newTestPlatform(r)

	cmd := DetachedCommand("/workspace", "python3", "app.py")
	if err := d.Exec(context.Background(), Handle{ID: "c0ffee"}, "sh", "-c", cmd); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	if len(r.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(r.calls))
	}
	want := []string{"exec", "--detach", "c0ffee", "sh", "-c", cmd}
	got := r.calls[0].args
	if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
		t.Errorf("exec args = %q, want %q", got, want)
	}
}

func TestDockerExecEmptyCommand(t *testing.T) {
	d := newTestPlatform(&fakeRunner{})
	if err := d.Exec(context.Background(), Handle{ID: "x"}); err == nil {
		t.Fatal("expected error for empty argv")
	}
}
