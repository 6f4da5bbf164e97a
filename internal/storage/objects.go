package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// objectsDir is the subdirectory of the sandbox that holds materialized
// content objects.
const objectsDir = "objects"

// ObjectStore materializes cached content bytes as local files the renderer
// can open directly. Files are addressed by a hash of the remote address and
// sharded into subdirectories to keep directory sizes manageable. The files
// are disposable: the durable copy lives in the database and a missing file
// is simply rewritten.
type ObjectStore struct {
	sandbox *Sandbox
}

// NewObjectStore creates an object store inside the given sandbox.
func NewObjectStore(sandbox *Sandbox) (*ObjectStore, error) {
	if err := sandbox.MkdirAll(objectsDir); err != nil {
		return nil, fmt.Errorf("creating objects directory: %w", err)
	}
	return &ObjectStore{sandbox: sandbox}, nil
}

// relPath returns the sandbox-relative sharded path for a remote address,
// e.g. objects/ab/abcdef...123.jpg.
func (o *ObjectStore) relPath(address string) string {
	sum := sha256.Sum256([]byte(address))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(objectsDir, name[:2], name+extensionFor(address))
}

// extensionFor derives a file extension from the address path, defaulting to
// .bin when the URL carries none.
func extensionFor(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ".bin"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	// Reject oddities like ".php?x=1" remnants or overly long suffixes.
	if ext == "" || len(ext) > 8 || strings.ContainsAny(ext, "?&=%") {
		return ".bin"
	}
	return ext
}

// Materialize writes the content bytes for address to the object store and
// returns the absolute local path. Writing is atomic; an existing file with
// the expected size is reused without rewriting.
func (o *ObjectStore) Materialize(address string, data []byte) (string, error) {
	rel := o.relPath(address)

	if size, err := o.sandbox.Size(rel); err == nil && size == int64(len(data)) {
		return o.sandbox.ResolvePath(rel)
	}

	if err := o.sandbox.AtomicWrite(rel, data); err != nil {
		return "", fmt.Errorf("materializing object: %w", err)
	}
	return o.sandbox.ResolvePath(rel)
}

// Lookup returns the absolute local path for address if the object file
// exists on disk.
func (o *ObjectStore) Lookup(address string) (string, bool) {
	rel := o.relPath(address)
	exists, err := o.sandbox.Exists(rel)
	if err != nil || !exists {
		return "", false
	}
	abs, err := o.sandbox.ResolvePath(rel)
	if err != nil {
		return "", false
	}
	return abs, true
}

// Remove deletes the object file for address. A missing file is not an error.
func (o *ObjectStore) Remove(address string) error {
	rel := o.relPath(address)
	exists, err := o.sandbox.Exists(rel)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return o.sandbox.Remove(rel)
}

// RemoveAll deletes every materialized object and recreates the empty
// objects directory.
func (o *ObjectStore) RemoveAll() error {
	if err := o.sandbox.RemoveAll(objectsDir); err != nil {
		return err
	}
	return o.sandbox.MkdirAll(objectsDir)
}
