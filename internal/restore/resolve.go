// Package restore copies vault files out of a vault root and checks that
// recorded files physically exist.
//
// Paths are always recomputed with vault.PhysicalPath. Estimated paths from
// exports are only used to recover a missing hex identifier or root.
package restore

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/vault"
)

// PlaceholderName is the unresolved internal name some exports carry.
const PlaceholderName = "{$CAD_NAME}"

// FileRef is the subset of a persisted file needed to locate it.
type FileRef struct {
	ID            int64
	Hex           string
	VaultRoot     string
	EstimatedPath string
	OriginalName  string
	Filename      string
	InternalName  string
}

// label identifies ref in error messages.
func (r FileRef) label() string {
	name := r.OriginalName
	if name == "" {
		name = r.Filename
	}
	if name == "" {
		return fmt.Sprintf("file %d", r.ID)
	}
	return fmt.Sprintf("file %d (%s)", r.ID, name)
}

// Location is a resolved vault address.
type Location struct {
	Hex    string
	Root   string
	Source string
}

// Resolve computes the physical location of ref. A non-empty rootOverride
// replaces the stored vault root.
func Resolve(ref FileRef, rootOverride string) (Location, error) {
	hex := vault.NormalizeHex(ref.Hex)
	if hex == "" && ref.EstimatedPath != "" {
		hex = vault.NormalizeHex(ref.EstimatedPath)
	}
	if !vault.ValidHex(hex) {
		return Location{}, fmt.Errorf("%s: missing hex identifier", ref.label())
	}

	root := strings.TrimSpace(rootOverride)
	if root == "" {
		root = strings.TrimSpace(ref.VaultRoot)
	}
	if root == "" && ref.EstimatedPath != "" {
		root = vault.Dir(strings.TrimSpace(ref.EstimatedPath))
	}
	if root == "" {
		return Location{Hex: hex}, fmt.Errorf("%s: missing vault root", ref.label())
	}

	return Location{Hex: hex, Root: root, Source: vault.PhysicalPath(root, hex)}, nil
}

// DestinationName picks the restored file name: the internal application
// name unless it is empty or the placeholder, otherwise the original name,
// otherwise the filename. Directory components are stripped.
func DestinationName(ref FileRef) (string, error) {
	name := strings.TrimSpace(ref.InternalName)
	if name == "" || name == PlaceholderName {
		name = strings.TrimSpace(ref.OriginalName)
	}
	if name == "" {
		name = strings.TrimSpace(ref.Filename)
	}
	name = vault.Base(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%s: missing destination filename", ref.label())
	}
	return name, nil
}
