// Package delta compares generated content with what is already on disk.
package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
)

// HashBytes returns "sha256:<hex>" for data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HashFile computes the SHA256 hash of a single file and returns "sha256:<hex>".
func HashFile(fs billy.Basic, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Status describes how generated content relates to the file on disk.
type Status int

const (
	Unchanged Status = iota
	Created
	Updated
	Removed
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return "unchanged"
}

// Compare reports whether writing data to path would create, update or leave the file alone.
func Compare(fs billy.Basic, path string, data []byte) (Status, error) {
	h, err := HashFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return Created, nil
	}
	if err != nil {
		return Unchanged, err
	}
	if h == HashBytes(data) {
		return Unchanged, nil
	}
	return Updated, nil
}
