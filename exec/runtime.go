// Package exec models the filesystem runtime a build or install operates
// inside: a writable overlay that can be configured from a resolved
// Solution, diffed against its starting state, and committed to a content
// layer.
package exec

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
)

// Prefix is the path under which every resolved package's files are
// layered together inside a runtime.
const Prefix = "/spfs"

// DiffMode classifies one path's change between a runtime's base layer
// and its current writable state.
type DiffMode int

const (
	// Unchanged means the path is identical to the base layer.
	Unchanged DiffMode = iota
	// Added means the path exists only in the writable state.
	Added
	// Removed means the path existed in the base layer and was deleted.
	Removed
	// Modified means the path exists in both but its content or mode
	// differs.
	Modified
)

func (m DiffMode) String() string {
	switch m {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unchanged"
	}
}

// DiffEntry is one entry on either side of a Diff, carrying enough of the
// stat bits to tell a directory from a regular file.
type DiffEntry struct {
	Mode uint32
}

// IsDir reports whether this entry describes a directory.
func (e DiffEntry) IsDir() bool { return e.Mode&dirModeBit != 0 }

// dirModeBit mirrors the bit Go's os.ModeDir would occupy in a raw stat
// mode; kept local so Diff never needs to import os.
const dirModeBit = 1 << 31

// Diff describes one changed (or unchanged) path between a runtime's base
// layer and its current state. Before and After are populated only when
// the corresponding side exists.
type Diff struct {
	Path   string
	Mode   DiffMode
	Before *DiffEntry
	After  *DiffEntry
}

// Runtime is the filesystem and process environment a build or install
// executes inside. Implementations range from a real overlay-filesystem
// mount (outside this module's scope) to the in-memory FakeRuntime used
// in tests.
type Runtime interface {
	// Configure layers solution's packages into the runtime, in
	// resolution order, so later entries shadow earlier ones.
	Configure(solution Solution) error

	// SetEditable toggles whether the runtime's top layer accepts writes.
	SetEditable(editable bool) error

	// Remount re-applies the current layer configuration; implementations
	// that lazily apply Configure do the actual work here.
	Remount() error

	// Reset discards writes under path (and, if path is empty, every
	// write) made since the last Remount, reverting to the configured
	// layers.
	Reset(path string) error

	// Diff reports the paths of the runtime, each classified by how it
	// changed between the configured layers and the current writable
	// state; entries with Mode Unchanged may be included.
	Diff() ([]Diff, error)

	// CommitLayer seals the runtime's current writes into a new
	// content-addressed layer and returns its digest.
	CommitLayer() (string, error)

	// BuildShellInitializedCommand returns an *exec.Cmd for name/args,
	// pre-configured to run with this runtime's environment sourced
	// (PATH, PREFIX and friends) the way a real shell login would.
	BuildShellInitializedCommand(ctx context.Context, name string, args ...string) (*exec.Cmd, error)
}

// Solution is the minimal surface exec needs from a resolved dependency
// graph: an ordered list of resolved (Spec, data path) items plus one
// flattened environment, without depending on the solve package's
// concrete Solution type.
type Solution interface {
	// Items returns the resolved packages in resolution order, each with
	// its Spec and the data path it is mounted from.
	Items() []SolvedItem
	// ToEnvironment flattens every item's options into one set of
	// environment variable assignments.
	ToEnvironment() map[string]string
}

// SolvedItem is one resolved package as seen by exec: its final Spec and
// the data path it should be mounted from.
type SolvedItem struct {
	Spec     api.Spec
	DataPath string
}

// FSAccessor is implemented by Runtime implementations that expose their
// backing filesystem directly. The Builder needs this to write a build's
// build.sh and options.json under its data path before invoking the
// build script.
type FSAccessor interface {
	FS() afero.Fs
}

// NoActiveRuntimeError indicates a call was made outside of any runtime.
type NoActiveRuntimeError struct{}

func (e *NoActiveRuntimeError) Error() string { return "no runtime is currently active" }

// DataPath returns the canonical path where a resolved package's files
// live under prefix, e.g. "/spfs/spk/pkg/mylib/1.0.0/CURUGT6F".
func DataPath(id api.Ident, prefix string) string {
	build := "src"
	if id.Build != nil {
		build = id.Build.String()
	}
	return fmt.Sprintf("%s/spk/pkg/%s/%s/%s", prefix, id.Name, id.Version, build)
}

// BuildScriptPath returns the path of a build's persisted build.sh.
func BuildScriptPath(id api.Ident, prefix string) string {
	return DataPath(id, prefix) + "/build.sh"
}

// BuildOptionsPath returns the path of a build's persisted options.json.
func BuildOptionsPath(id api.Ident, prefix string) string {
	return DataPath(id, prefix) + "/options.json"
}
