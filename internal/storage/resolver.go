package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Resolver translates between storage locations and the references clients see.
type Resolver struct {
	mount string
	root  string
}

// NewResolver returns a resolver serving files under mount (e.g. "/uploads")
// and storing them under root. Root may be empty for flat key spaces.
func NewResolver(mount, root string) Resolver {
	mount = "/" + strings.Trim(mount, "/")
	return Resolver{mount: mount, root: root}
}

func (r Resolver) Mount() string { return r.mount }

// ToPublic returns the public reference for a storage path.
func (r Resolver) ToPublic(storagePath string) string {
	return path.Join(r.mount, filepath.Base(filepath.ToSlash(storagePath)))
}

// Name extracts the bare file name from a public reference. Anything that
// could walk out of the root is rejected.
func (r Resolver) Name(publicRef string) (string, error) {
	ref := publicRef
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.ReplaceAll(ref, `\`, "/")
	name := path.Base(path.Clean("/" + ref))
	if name == "/" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, publicRef)
	}
	return name, nil
}

// ToStorage maps a public reference back to where its bytes live.
func (r Resolver) ToStorage(publicRef string) (string, error) {
	name, err := r.Name(publicRef)
	if err != nil {
		return "", err
	}
	if r.root == "" {
		return name, nil
	}
	return filepath.Join(r.root, name), nil
}
