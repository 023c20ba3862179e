package api

import (
	"crypto/sha256"
	"encoding/base32"
	"runtime"
	"sort"
	"strings"
)

// OptionMap is an ordered name->value configuration. Iteration order
// follows insertion order; the Digest is independent of insertion order.
type OptionMap struct {
	names []Name
	vals  map[Name]string
}

// NewOptionMap builds an empty OptionMap.
func NewOptionMap() OptionMap {
	return OptionMap{vals: make(map[Name]string)}
}

// Get returns the value for name and whether it was present.
func (m OptionMap) Get(name Name) (string, bool) {
	if m.vals == nil {
		return "", false
	}
	v, ok := m.vals[name]
	return v, ok
}

// Set assigns name=value, appending name to the iteration order the first
// time it is seen.
func (m *OptionMap) Set(name Name, value string) {
	if m.vals == nil {
		m.vals = make(map[Name]string)
	}
	if _, exists := m.vals[name]; !exists {
		m.names = append(m.names, name)
	}
	m.vals[name] = value
}

// Update merges the entries of other into m, in other's iteration order.
func (m *OptionMap) Update(other OptionMap) {
	for _, n := range other.names {
		v, _ := other.Get(n)
		m.Set(n, v)
	}
}

// Names returns the option names in insertion order.
func (m OptionMap) Names() []Name {
	out := make([]Name, len(m.names))
	copy(out, m.names)
	return out
}

// Len reports the number of entries.
func (m OptionMap) Len() int { return len(m.names) }

// Clone returns an independent copy.
func (m OptionMap) Clone() OptionMap {
	out := NewOptionMap()
	out.Update(m)
	return out
}

// Digest deterministically hashes the (name,value) set, independent of
// insertion order, into a fixed-width Build digest.
func (m OptionMap) Digest() Build {
	names := m.Names()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	var buf strings.Builder
	for _, n := range names {
		v, _ := m.Get(n)
		buf.WriteString(string(n))
		buf.WriteByte(0)
		buf.WriteString(v)
		buf.WriteByte(0)
	}

	sum := sha256.Sum256([]byte(buf.String()))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return Build{kind: KindDigest, digest: enc[:digestSize]}
}

// ToEnvironment returns "SPK_OPT_<name>=<value>" for every entry, in
// insertion order.
func (m OptionMap) ToEnvironment() []string {
	out := make([]string, 0, len(m.names))
	for _, n := range m.names {
		v, _ := m.Get(n)
		out = append(out, "SPK_OPT_"+string(n)+"="+v)
	}
	return out
}

// HostOptions seeds an OptionMap with the running process's os/arch, the
// default base option set a caller may build requests on top of.
func HostOptions() OptionMap {
	m := NewOptionMap()
	m.Set("os", runtime.GOOS)
	m.Set("arch", runtime.GOARCH)
	return m
}
