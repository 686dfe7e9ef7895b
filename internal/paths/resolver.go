// Package paths translates between paths as received from callers and
// paths on this host. Stored paths are always portable: relative to the
// project root where possible, forward slashes on every platform.
package paths

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
)

// EpisodeLookup is the registry subset the resolver needs for the
// filename fallback.
type EpisodeLookup interface {
	FindByFilename(ctx context.Context, name string) (*models.Episode, error)
}

// Resolver normalizes incoming paths against the project root and a set
// of mount-point aliases.
type Resolver struct {
	root    string
	aliases []alias
	lookup  EpisodeLookup
}

type alias struct {
	prefix string
	target string
}

// NewResolver builds a resolver rooted at projectRoot. mountAliases maps
// an incoming prefix to its host equivalent, e.g. "/data" →
// "{projectRoot}/data". Longer prefixes match first.
func NewResolver(projectRoot string, mountAliases map[string]string, lookup EpisodeLookup) *Resolver {
	r := &Resolver{
		root:   filepath.Clean(projectRoot),
		lookup: lookup,
	}
	for prefix, target := range mountAliases {
		r.aliases = append(r.aliases, alias{
			prefix: strings.TrimRight(filepath.ToSlash(prefix), "/"),
			target: filepath.Clean(target),
		})
	}
	sort.Slice(r.aliases, func(i, j int) bool {
		return len(r.aliases[i].prefix) > len(r.aliases[j].prefix)
	})
	return r
}

// Root returns the project root the resolver was built with.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve turns an input path into an absolute host path. Mount aliases
// apply first; relative paths resolve against the project root.
func (r *Resolver) Resolve(input string) string {
	p := filepath.ToSlash(strings.TrimSpace(input))
	if p == "" {
		return r.root
	}
	for _, a := range r.aliases {
		if p == a.prefix || strings.HasPrefix(p, a.prefix+"/") {
			rest := strings.TrimPrefix(p, a.prefix)
			return filepath.Clean(a.target + rest)
		}
	}
	if filepath.IsAbs(filepath.FromSlash(p)) {
		return filepath.Clean(filepath.FromSlash(p))
	}
	return filepath.Join(r.root, filepath.FromSlash(p))
}

// Portable converts a host path into the stored form: relative to the
// project root when the path lives under it, always forward slashes.
func (r *Resolver) Portable(hostPath string) string {
	p := filepath.Clean(hostPath)
	if rel, err := filepath.Rel(r.root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}

// FindByFilename looks up an episode by its source file base name.
// Callers use this when a supplied episode ID does not resolve.
func (r *Resolver) FindByFilename(ctx context.Context, name string) (*models.Episode, error) {
	if r.lookup == nil {
		return nil, models.ErrEpisodeNotFound
	}
	return r.lookup.FindByFilename(ctx, filepath.Base(filepath.ToSlash(name)))
}
