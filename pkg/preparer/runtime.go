package preparer

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Runtimes maps the version an artifact asks for onto an interpreter
// installed on this host.
type Runtimes struct {
	entries []runtimeEntry
}

type runtimeEntry struct {
	constraint  *semver.Constraints
	raw         string
	interpreter string
}

// NewRuntimes takes semver constraints (e.g. "~3.7") to interpreter
// paths. Constraints are tried in lexical order.
func NewRuntimes(m map[string]string) (*Runtimes, error) {
	r := &Runtimes{}
	for raw, interpreter := range m {
		c, err := semver.NewConstraint(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing runtime constraint %q", raw)
		}
		r.entries = append(r.entries, runtimeEntry{constraint: c, raw: raw, interpreter: interpreter})
	}
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].raw < r.entries[j].raw })
	return r, nil
}

// Resolve returns the interpreter for version, as written in an
// artifact's python-version file.
func (r *Runtimes) Resolve(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("unsupported python version %q", version)
	}
	for _, e := range r.entries {
		if e.constraint.Check(v) {
			return e.interpreter, nil
		}
	}
	return "", fmt.Errorf("unsupported python version %q", version)
}
