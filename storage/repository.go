// Package storage implements the Repository interface: lookup of
// versions/builds/specs, and publish of a resolved (spec, layer) pair.
package storage

import (
	"fmt"

	"github.com/ilpvfx/spk/api"
)

// Repository looks up package versions, builds and specs, and (for local
// repositories) accepts new publications.
//
// Remote repositories are expected to implement the read paths only;
// PublishSpec/PublishPackage on a remote repository should return
// ErrRemoteReadOnly (publish is local-only by design, see DESIGN.md).
type Repository interface {
	fmt.Stringer

	// ListVersions returns every version known for name, in any order.
	ListVersions(name api.Name) ([]api.Version, error)

	// ListBuilds returns every Ident for name at version, including SOURCE
	// and EMBEDDED variants where the spec declares them.
	ListBuilds(name api.Name, version api.Version) ([]api.Ident, error)

	// ReadSpec returns the Spec for a concrete Ident.
	ReadSpec(id api.Ident) (api.Spec, error)

	// PublishSpec stores spec, refusing to overwrite an existing spec at
	// the same Ident unless force is set. Local repositories only.
	PublishSpec(spec api.Spec, force bool) error

	// PublishPackage atomically stores the pairing of spec and the digest
	// of its committed filesystem layer. Local repositories only: either
	// the pair becomes visible in full, or neither part does.
	PublishPackage(spec api.Spec, layerDigest string) error
}

// ErrRemoteReadOnly is returned by PublishSpec/PublishPackage on a
// repository that only supports reads.
var ErrRemoteReadOnly = fmt.Errorf("repository is remote and does not accept publication")

// ErrSpecExists is returned by PublishSpec when a spec already exists at
// the target Ident and force was not set.
type ErrSpecExists struct {
	Ident api.Ident
}

func (e *ErrSpecExists) Error() string {
	return fmt.Sprintf("spec already published at %s (use force to overwrite)", e.Ident)
}

// ErrNotFound is returned by the read paths when nothing matches.
type ErrNotFound struct {
	Name    api.Name
	Version *api.Version
	Build   *api.Build
}

func (e *ErrNotFound) Error() string {
	switch {
	case e.Build != nil:
		return fmt.Sprintf("no package found for %s/%s/%s", e.Name, e.Version, e.Build)
	case e.Version != nil:
		return fmt.Sprintf("no package found for %s/%s", e.Name, e.Version)
	default:
		return fmt.Sprintf("no package found for %s", e.Name)
	}
}
