// Package vault maps vault hex identifiers to their on-disk and exported paths.
//
// A vault stores every file under a flat root, named by a hexadecimal
// identifier left-padded with zeros to 14 characters and without an
// extension. Exported metadata does not always follow that layout, so the
// physical and logical forms are built by separate functions. Only
// PhysicalPath describes what is actually on disk.
package vault

import (
	"strings"
)

// PhysicalWidth is the zero-padded length of a file name inside a vault root.
const PhysicalWidth = 14

// FVExtension is the extension some exports append to vault file names.
const FVExtension = ".fv"

// NormalizeHex reduces a hex identifier, padded file name or full path to the
// pure identifier: last path segment, no .fv suffix, no leading zeros,
// uppercase. An all-zero value normalizes to "0". Empty input yields "".
func NormalizeHex(raw string) string {
	s := Base(strings.TrimSpace(raw))
	if len(s) >= len(FVExtension) && strings.EqualFold(s[len(s)-len(FVExtension):], FVExtension) {
		s = s[:len(s)-len(FVExtension)]
	}
	if s == "" {
		return ""
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	return strings.ToUpper(s)
}

// ValidHex reports whether s is a non-empty string of hexadecimal digits.
func ValidHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// PhysicalPath returns the on-disk location of hexOrPath under root.
// It returns "" when either input is empty.
func PhysicalPath(root, hexOrPath string) string {
	return LogicalPath(root, hexOrPath, "", PhysicalWidth)
}

// LogicalPath joins root and the normalized hex, padded to width (no padding
// when width <= 0) and suffixed with ext when ext is non-empty. It is used to
// reproduce the estimated paths found in exported metadata.
func LogicalPath(root, hex, ext string, width int) string {
	h := NormalizeHex(hex)
	root = strings.TrimSpace(root)
	if h == "" || root == "" {
		return ""
	}
	if width > 0 && len(h) < width {
		h = strings.Repeat("0", width-len(h)) + h
	}
	if ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		h += ext
	}

	sep := separator(root)
	trimmed := strings.TrimRight(root, `/\`)
	if trimmed == "" {
		// root was only separators, e.g. "/"
		return sep + h
	}
	return trimmed + sep + h
}

// Base returns the last segment of p, treating both '/' and '\' as
// separators so Windows paths from exports resolve on any host.
func Base(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Dir returns everything before the last separator of p, or "" when p has
// no separator.
func Dir(p string) string {
	p = strings.TrimRight(p, `/\`)
	i := strings.LastIndexAny(p, `/\`)
	if i < 0 {
		return ""
	}
	if i == 0 {
		return p[:1]
	}
	return p[:i]
}

// separator picks the join separator matching the style of root.
func separator(root string) string {
	if strings.Contains(root, `\`) && !strings.Contains(root, "/") {
		return `\`
	}
	return "/"
}
