package exec

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"os"
	osexec "os/exec"
	"path"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// FakeRuntime is an in-memory Runtime, backed by afero's MemMapFs, for use
// in build and solver integration tests where no real overlay filesystem
// is available.
type FakeRuntime struct {
	mu sync.Mutex

	fs       afero.Fs
	prefix   string
	base     map[string]bool // paths present after the last Remount
	editable bool
	env      map[string]string
}

// NewFakeRuntime constructs an empty FakeRuntime rooted at prefix.
func NewFakeRuntime(prefix string) *FakeRuntime {
	return &FakeRuntime{
		fs:     afero.NewMemMapFs(),
		prefix: prefix,
		base:   map[string]bool{},
		env:    map[string]string{},
	}
}

// FS exposes the runtime's backing filesystem, for tests that need to
// seed files directly or inspect the result of a build.
func (r *FakeRuntime) FS() afero.Fs { return r.fs }

// Configure implements Runtime by recording the solution's environment
// and creating every solved item's data path as an empty directory in the
// runtime's filesystem, in order; no package content is copied.
func (r *FakeRuntime) Configure(solution Solution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range solution.ToEnvironment() {
		r.env[k] = v
	}
	for _, item := range solution.Items() {
		if item.DataPath == "" {
			continue
		}
		if err := r.fs.MkdirAll(item.DataPath, 0o755); err != nil {
			return fmt.Errorf("configure runtime: %w", err)
		}
	}
	return nil
}

// SetEditable implements Runtime.
func (r *FakeRuntime) SetEditable(editable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.editable = editable
	return nil
}

// Remount implements Runtime by snapshotting the current set of paths as
// the new base, against which future Diff calls are compared.
func (r *FakeRuntime) Remount() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := map[string]bool{}
	err := afero.Walk(r.fs, r.prefix, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base[p] = true
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remount runtime: %w", err)
	}
	r.base = base
	return nil
}

// Reset implements Runtime by removing every path under p (or, if p is
// empty, the whole prefix) that was not present at the last Remount.
func (r *FakeRuntime) Reset(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	root := r.prefix
	if p != "" {
		root = path.Join(r.prefix, p)
	}

	var toRemove []string
	err := afero.Walk(r.fs, root, func(cur string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !r.base[cur] {
			toRemove = append(toRemove, cur)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset runtime: %w", err)
	}
	for _, rp := range toRemove {
		if err := r.fs.RemoveAll(rp); err != nil {
			return fmt.Errorf("reset runtime: %w", err)
		}
	}
	return nil
}

// Diff implements Runtime, comparing the filesystem's current state
// against the paths recorded at the last Remount.
func (r *FakeRuntime) Diff() ([]Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{}
	var diffs []Diff

	err := afero.Walk(r.fs, r.prefix, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		seen[p] = true
		after := &DiffEntry{Mode: statMode(info)}
		if r.base[p] {
			diffs = append(diffs, Diff{Path: p, Mode: Unchanged, Before: after, After: after})
			return nil
		}
		diffs = append(diffs, Diff{Path: p, Mode: Added, After: after})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("diff runtime: %w", err)
	}

	for p := range r.base {
		if !seen[p] {
			diffs = append(diffs, Diff{Path: p, Mode: Removed, Before: &DiffEntry{}})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs, nil
}

func statMode(info os.FileInfo) uint32 {
	var m uint32
	if info.IsDir() {
		m |= dirModeBit
	}
	return m
}

// CommitLayer implements Runtime by hashing the sorted list of paths
// present in the runtime's current state; this is a much cheaper stand-in
// for a real content-addressed tree digest, sufficient for tests that
// assert two runtimes with the same contents commit to the same digest.
func (r *FakeRuntime) CommitLayer() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var paths []string
	err := afero.Walk(r.fs, r.prefix, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("commit layer: %w", err)
	}
	sort.Strings(paths)

	manifest, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("commit layer: %w", err)
	}
	sum := sha256.Sum256(manifest)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "sha256:" + enc, nil
}

// BuildShellInitializedCommand implements Runtime. The returned *exec.Cmd
// carries the runtime's accumulated environment variables but is never
// invoked by FakeRuntime itself.
func (r *FakeRuntime) BuildShellInitializedCommand(ctx context.Context, name string, args ...string) (*osexec.Cmd, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := osexec.CommandContext(ctx, name, args...)
	env := os.Environ()
	for k, v := range r.env {
		env = append(env, k+"="+v)
	}
	env = append(env, "PREFIX="+r.prefix)
	cmd.Env = env
	return cmd, nil
}
