// Package sitemeta turns a built site output directory into the routing
// metadata consumed by the request dispatcher.
//
// The walk is deliberately coarse: top-level files become literal asset keys,
// top-level directories become single directory-route entries, so the
// serialized metadata stays small no matter how many files a site ships. A
// short allow-list of "expandable" directories (well-known files, the
// framework's deep-route prefix) is walked one level deeper because their
// children must be probed as literal files.
package sitemeta

import (
	"io/fs"
	"path"
	"sort"

	"github.com/edgecraft/edgecraft/routetable"
)

// defaultExpandDirs are directory names whose children are enumerated as
// literal files rather than collapsed into one directory route.
var defaultExpandDirs = []string{".well-known"}

// Options control the assembly walk.
type Options struct {
	// ExpandDirs overrides the default expandable directory allow-list.
	ExpandDirs []string
	// DeepRoutePrefix names a directory flagged by the framework adapter as
	// routable one level deep (for example a build-output prefix).
	DeepRoutePrefix string
}

// Manifest is the classified view of a built output directory.
type Manifest struct {
	// Files are the literal asset keys, relative to the output root.
	Files []string
	// DirRoutes are the coarse directory-route entries, each starting
	// with "/".
	DirRoutes []string
}

// Assemble walks the top level of a built output directory and classifies
// its entries.
func Assemble(fsys fs.FS, opts Options) (*Manifest, error) {
	expand := opts.ExpandDirs
	if expand == nil {
		expand = defaultExpandDirs
	}
	if opts.DeepRoutePrefix != "" {
		expand = append(append([]string{}, expand...), opts.DeepRoutePrefix)
	}
	expandable := map[string]bool{}
	for _, name := range expand {
		expandable[name] = true
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			m.Files = append(m.Files, name)
			continue
		}
		if !expandable[name] {
			m.DirRoutes = append(m.DirRoutes, "/"+name)
			continue
		}

		children, err := fs.ReadDir(fsys, name)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.IsDir() {
				m.DirRoutes = append(m.DirRoutes, "/"+path.Join(name, child.Name()))
				continue
			}
			m.Files = append(m.Files, path.Join(name, child.Name()))
		}
	}

	sort.Strings(m.Files)
	sort.Strings(m.DirRoutes)
	return m, nil
}

// SiteAssets shapes the manifest into the stored metadata form.
func (m *Manifest) SiteAssets(domain, dir string) *routetable.SiteAssets {
	return &routetable.SiteAssets{
		Domain: domain,
		Dir:    dir,
		Files:  append([]string{}, m.Files...),
		Routes: append([]string{}, m.DirRoutes...),
	}
}
