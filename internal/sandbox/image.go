package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// BaseDebianSlim is the alias for a slim Debian image with python3 and pip.
const BaseDebianSlim = "debian-slim"

var baseAliases = map[string]string{
	BaseDebianSlim: "python:3.11-slim-bookworm",
}

// Mount copies a local directory into the image at RemotePath.
type Mount struct {
	LocalDir   string
	RemotePath string
}

// ImageSpec is an immutable description of a sandbox image. Every builder
// method returns a new value; the receiver is never modified.
type ImageSpec struct {
	base             string
	systemPackages   []string
	languagePackages []string
	mount            Mount
}

// NewImage starts a spec from a base image or alias.
func NewImage(base string) ImageSpec {
	return ImageSpec{base: base}
}

// AptInstall appends system packages.
func (s ImageSpec) AptInstall(pkgs ...string) ImageSpec {
	s.systemPackages = appendCopy(s.systemPackages, pkgs)
	return s
}

// PipInstall appends python packages.
func (s ImageSpec) PipInstall(pkgs ...string) ImageSpec {
	s.languagePackages = appendCopy(s.languagePackages, pkgs)
	return s
}

// AddLocalDir sets the single local directory bundled into the image.
func (s ImageSpec) AddLocalDir(localDir, remotePath string) ImageSpec {
	s.mount = Mount{LocalDir: localDir, RemotePath: remotePath}
	return s
}

func (s ImageSpec) Base() string { return s.base }

func (s ImageSpec) SystemPackages() []string { return appendCopy(nil, s.systemPackages) }

func (s ImageSpec) LanguagePackages() []string { return appendCopy(nil, s.languagePackages) }

func (s ImageSpec) Mount() Mount { return s.mount }

// BaseImage resolves the base alias to a registry reference.
func (s ImageSpec) BaseImage() string {
	if ref, ok := baseAliases[s.base]; ok {
		return ref
	}
	return s.base
}

// Validate reports specs that cannot be built.
func (s ImageSpec) Validate() error {
	if s.base == "" {
		return fmt.Errorf("image spec: base image is required")
	}
	if s.mount.LocalDir == "" {
		return fmt.Errorf("image spec: local directory is required")
	}
	if !path.IsAbs(s.mount.RemotePath) {
		return fmt.Errorf("image spec: remote path %q must be absolute", s.mount.RemotePath)
	}
	for _, p := range append(s.SystemPackages(), s.languagePackages...) {
		if strings.TrimSpace(p) == "" || strings.HasPrefix(p, "-") {
			return fmt.Errorf("image spec: invalid package name %q", p)
		}
	}
	return nil
}

// Dockerfile renders the spec. The build context is the mount's LocalDir.
func (s ImageSpec) Dockerfile() string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n", s.BaseImage())
	if len(s.systemPackages) > 0 {
		fmt.Fprintf(&b, "RUN apt-get update && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*\n",
			shellquote.Join(s.systemPackages...))
	}
	if len(s.languagePackages) > 0 {
		fmt.Fprintf(&b, "RUN pip install --no-cache-dir %s\n", shellquote.Join(s.languagePackages...))
	}
	fmt.Fprintf(&b, "COPY . %s\n", s.mount.RemotePath)
	fmt.Fprintf(&b, "WORKDIR %s\n", s.mount.RemotePath)

	return b.String()
}

// Tag returns a content-addressed image tag, so identical specs share a
// build cache entry.
func (s ImageSpec) Tag(app string) string {
	sum := sha256.Sum256([]byte(s.Dockerfile()))
	return fmt.Sprintf("dailyrun/%s:%s", strings.ToLower(app), hex.EncodeToString(sum[:])[:12])
}

// DetachedCommand returns a shell line that runs argv from dir in the
// background, detached from the terminal, with all output discarded.
func DetachedCommand(dir string, argv ...string) string {
	return fmt.Sprintf("cd %s && nohup %s > /dev/null 2>&1 &",
		shellquote.Join(dir), shellquote.Join(argv...))
}

func appendCopy(dst, src []string) []string {
	out := make([]string, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}
