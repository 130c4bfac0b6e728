// Package pathutil is the path-string lexing/normalisation collaborator the
// memvfs core consumes. It knows nothing about inodes or filesystems; it
// only parses, joins, compares and validates path strings, supporting
// POSIX (/a/b), UNC (//host/share/a/b) and DOS (c:/a/b) root forms.
package pathutil

import (
	"strings"

	"github.com/google/memvfs/vfserrors"
)

// ParsedPath is the result of Parse: a root component (possibly empty for
// a relative path) plus the ordered non-empty path segments that follow it.
type ParsedPath struct {
	Root     string
	Segments []string
}

// NormalizeSeparators converts backslashes and whitespace-padded separators
// into a canonical "/".
func NormalizeSeparators(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	runes := []rune(p)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\\', '/':
			// Trim surrounding whitespace around the separator.
			for b.Len() > 0 {
				s := b.String()
				if s[len(s)-1] == ' ' || s[len(s)-1] == '\t' {
					trimmed := strings.TrimRight(s, " \t")
					b.Reset()
					b.WriteString(trimmed)
					continue
				}
				break
			}
			b.WriteByte('/')
			for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
				i++
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dosDriveRoot reports whether p begins with a DOS drive letter root like
// "c:/" or "c:\", returning the normalized root ("c:/") and the remainder.
func dosDriveRoot(p string) (root, rest string, ok bool) {
	if len(p) >= 2 && isAsciiLetter(p[0]) && p[1] == ':' {
		if len(p) >= 3 && (p[2] == '/' || p[2] == '\\') {
			return strings.ToLower(p[:1]) + ":/", p[3:], true
		}
		// "c:" with nothing following is still a drive-relative root.
		return strings.ToLower(p[:1]) + ":/", "", true
	}
	return "", "", false
}

func isAsciiLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// uncRoot reports whether p begins with a UNC root like "//host/share/",
// returning the normalized root and the remainder.
func uncRoot(p string) (root, rest string, ok bool) {
	if !strings.HasPrefix(p, "//") {
		return "", "", false
	}
	trimmed := strings.TrimPrefix(p, "//")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	root = "//" + parts[0] + "/" + parts[1] + "/"
	if len(parts) == 3 {
		rest = parts[2]
	}
	return root, rest, true
}

// Parse splits a path into its root component (if any) and its ordered,
// non-empty segments. Whitespace around separators is trimmed by
// NormalizeSeparators before splitting.
func Parse(p string) ParsedPath {
	p = NormalizeSeparators(p)

	var root, rest string
	switch {
	case strings.HasPrefix(p, "//"):
		if r, rr, ok := uncRoot(p); ok {
			root, rest = r, rr
			break
		}
		root, rest = "/", strings.TrimPrefix(p, "/")
	case strings.HasPrefix(p, "/"):
		root, rest = "/", strings.TrimPrefix(p, "/")
	default:
		if r, rr, ok := dosDriveRoot(p); ok {
			root, rest = r, rr
		} else {
			rest = p
		}
	}

	var segs []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	return ParsedPath{Root: root, Segments: segs}
}

// Format is the inverse of Parse.
func Format(pp ParsedPath) string {
	joined := strings.Join(pp.Segments, "/")
	if pp.Root == "" {
		return joined
	}
	return pp.Root + joined
}

// IsAbsolute reports whether p has a POSIX, UNC or DOS root.
func IsAbsolute(p string) bool {
	return Parse(p).Root != ""
}

// IsRoot reports whether p names exactly a root (no segments beneath it).
func IsRoot(p string) bool {
	pp := Parse(p)
	return pp.Root != "" && len(pp.Segments) == 0
}

// HasTrailingSeparator reports whether p ends in a separator. Per the
// source semantics this is always false for a bare root (e.g. "/" has no
// "trailing" separator of its own — the root already intrinsically ends in
// one); RequireTrailingSeparator validation must therefore special-case
// roots rather than rely on this function alone.
func HasTrailingSeparator(p string) bool {
	n := NormalizeSeparators(p)
	if n == "" {
		return false
	}
	if IsRoot(n) {
		return false
	}
	return strings.HasSuffix(n, "/")
}

// Normalize collapses "." and ".." segments. A ".." pops the prior
// non-".." segment if one exists but never escapes the root: for an
// absolute path, excess ".." segments are dropped; for a relative path
// they are preserved as leading ".." segments.
func Normalize(p string) string {
	pp := Parse(p)
	out := normalizeSegments(pp.Segments, pp.Root != "")
	return Format(ParsedPath{Root: pp.Root, Segments: out})
}

func normalizeSegments(segs []string, absolute bool) []string {
	var out []string
	for _, s := range segs {
		switch s {
		case ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if absolute {
				continue // can't escape the root
			}
			out = append(out, "..")
		default:
			out = append(out, s)
		}
	}
	return out
}

// Combine joins path fragments with "/" and normalizes the result,
// preserving whichever fragment (if any) establishes an absolute root.
func Combine(parts ...string) string {
	joined := strings.Join(parts, "/")
	if len(parts) > 0 && Parse(parts[0]).Root == "/" {
		// Keep a POSIX root from turning into a UNC "//host/share/" root.
		joined = "/" + strings.TrimLeft(NormalizeSeparators(joined), "/")
	}
	return Normalize(joined)
}

// Resolve interprets rel relative to base. If rel is already absolute, it
// is returned normalized on its own; otherwise it is combined with base's
// directory context and normalized.
func Resolve(base, rel string) string {
	if IsAbsolute(rel) {
		return Normalize(rel)
	}
	bp := Parse(base)
	rp := Parse(rel)
	segs := normalizeSegments(append(append([]string{}, bp.Segments...), rp.Segments...), bp.Root != "")
	return Format(ParsedPath{Root: bp.Root, Segments: segs})
}

// Dirname returns all but the last segment of p, keeping the root.
func Dirname(p string) string {
	pp := Parse(p)
	if len(pp.Segments) == 0 {
		return Format(pp)
	}
	pp.Segments = pp.Segments[:len(pp.Segments)-1]
	return Format(pp)
}

// Basename returns the last segment of p, or "" for a bare root.
func Basename(p string) string {
	pp := Parse(p)
	if len(pp.Segments) == 0 {
		return ""
	}
	return pp.Segments[len(pp.Segments)-1]
}

// Extname returns the extension (including the leading dot) of the final
// segment of p, or "" if there is none.
func Extname(p string) string {
	base := Basename(p)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 { // leading dot (dotfile) does not count as an extension
		return ""
	}
	return base[i:]
}

// Comparator orders and compares path segment names.
type Comparator interface {
	Equal(a, b string) bool
	Less(a, b string) bool
	CaseInsensitive() bool
}

type caseSensitive struct{}

func (caseSensitive) Equal(a, b string) bool { return a == b }
func (caseSensitive) Less(a, b string) bool  { return a < b }
func (caseSensitive) CaseInsensitive() bool  { return false }

type caseInsensitive struct{}

func (caseInsensitive) Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
func (caseInsensitive) Less(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
func (caseInsensitive) CaseInsensitive() bool { return true }

// NewCaseSensitiveComparator returns the comparator used by a
// case-sensitive filesystem (the default).
func NewCaseSensitiveComparator() Comparator { return caseSensitive{} }

// NewCaseInsensitiveComparator returns the comparator used by a
// case-insensitive filesystem.
func NewCaseInsensitiveComparator() Comparator { return caseInsensitive{} }

// ValidateFlags controls which structural properties Validate requires or
// permits of a path.
type ValidateFlags uint32

const (
	RequireRoot ValidateFlags = 1 << iota
	AllowRoot
	RequireDirname
	AllowDirname
	RequireBasename
	AllowBasename
	RequireExtname
	AllowExtname
	RequireTrailingSeparator
	AllowTrailingSeparator
	AllowNavigation
)

// Convenience combinations, matching spec §6.
const (
	Root               = RequireRoot | AllowRoot | AllowTrailingSeparator
	Absolute           = RequireRoot | AllowRoot | AllowDirname | AllowBasename | AllowExtname | AllowTrailingSeparator | AllowNavigation
	RelativeOrAbsolute = AllowRoot | AllowDirname | AllowBasename | AllowExtname | AllowTrailingSeparator | AllowNavigation
	Basename           = RequireBasename | AllowExtname
)

// navigableForbidden is forbidden in every path regardless of flags.
const navigableForbidden = `:*?"<>|`

// Validate enforces flags against p, returning an ENOENT PathError when a
// required property is missing or a disallowed one is present.
func Validate(p string, flags ValidateFlags) error {
	pp := Parse(p)

	has := func(f ValidateFlags) bool { return flags&f != 0 }

	if has(RequireRoot) && pp.Root == "" {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}
	if pp.Root != "" && !has(AllowRoot) {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}

	dirname := Dirname(p)
	hasDirname := dirname != "" && dirname != pp.Root
	if has(RequireDirname) && !hasDirname {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}
	if hasDirname && !has(AllowDirname) {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}

	basename := Basename(p)
	if has(RequireBasename) && basename == "" {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}
	if basename != "" && !has(AllowBasename) {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}

	ext := Extname(p)
	if has(RequireExtname) && ext == "" {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}
	if ext != "" && !has(AllowExtname) {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}

	trailing := HasTrailingSeparator(p)
	if has(RequireTrailingSeparator) && !trailing {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}
	if trailing && !has(AllowTrailingSeparator) {
		return vfserrors.New("validate", vfserrors.ENOENT, p)
	}

	for _, seg := range pp.Segments {
		if !has(AllowNavigation) && (seg == "." || seg == "..") {
			return vfserrors.New("validate", vfserrors.ENOENT, p)
		}
		if strings.ContainsAny(seg, navigableForbidden) {
			return vfserrors.New("validate", vfserrors.ENOENT, p)
		}
	}

	return nil
}
