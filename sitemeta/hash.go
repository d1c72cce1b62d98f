package sitemeta

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"strings"
)

// InvalidationHash computes the content hash that decides whether a redeploy
// needs a CDN invalidation.
//
// Files under an immutable prefix carry a content hash in their name, so
// their path alone captures their content and hashing the bytes again is
// wasted work. Everything else is hashed by path and content: an unchanged
// hash between deploys means the edge caches are still valid.
func InvalidationHash(fsys fs.FS, immutablePrefixes []string) (string, error) {
	h := sha256.New()
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		io.WriteString(h, p)
		io.WriteString(h, "\x00")
		if underAnyPrefix(p, immutablePrefixes) {
			return nil
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func underAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.Trim(prefix, "/")
		if prefix == "" {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
