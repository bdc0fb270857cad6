// Package topicpath parses, canonicalizes and compares curriculum topic paths.
//
// A topic path is a non-empty sequence of labels joined by dots, for example
// "9709.p1.quadratics". Labels contain only [a-z0-9_] in canonical form.
// The subtree relation is separator-aware: "9709.p10" is not under "9709.p1".
package topicpath

import "strings"

// Separator joins labels.
const Separator = "."

// Unmapped is the reserved path for content that has not been classified yet.
// It never belongs to a real subtree.
const Unmapped Path = "unmapped"

// Path is a validated, canonical topic path.
type Path string

// Parse validates an already-canonical topic path.
// Surrounding whitespace is ignored. Mixed-case input fails with CodeNonCanonical;
// use Canonicalize for it.
func Parse(input string) (Path, error) {
	s, err := validate(input)
	if err != nil {
		return "", err
	}
	if hasUpper(s) {
		return "", newError(CodeNonCanonical, input,
			"topic path must be lowercase, got %q: use Canonicalize to convert", s)
	}
	return Path(s), nil
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(input string) Path {
	p, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return p
}

// Canonicalize validates input and lowercases every label.
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(input string) (Path, error) {
	s, err := validate(input)
	if err != nil {
		return "", err
	}
	return Path(strings.ToLower(s)), nil
}

// Serialize returns the wire form of p.
func Serialize(p Path) string { return string(p) }

// IsCanonical reports whether s is a canonical topic path.
func IsCanonical(s string) bool {
	if s == "" {
		return false
	}
	prevDot := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if prevDot {
				return false
			}
			prevDot = true
		case isLowerLabelChar(c):
			prevDot = false
		default:
			return false
		}
	}
	return !prevDot
}

// IsDescendantOf reports whether child equals parent or lies in parent's subtree.
// Both sides are compared case-insensitively. A plain string prefix is not enough:
// the child must continue with a separator after the parent.
func IsDescendantOf(child, parent string) bool {
	c := strings.ToLower(strings.TrimSpace(child))
	p := strings.ToLower(strings.TrimSpace(parent))
	if c == "" || p == "" {
		return false
	}
	if c == p {
		return true
	}
	return strings.HasPrefix(c, p+Separator)
}

// String implements fmt.Stringer.
func (p Path) String() string { return string(p) }

// Labels returns the path labels in order.
func (p Path) Labels() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), Separator)
}

// Depth returns the number of labels.
func (p Path) Depth() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), Separator) + 1
}

// Parent returns the path without its last label.
// ok is false for single-label paths.
func (p Path) Parent() (parent Path, ok bool) {
	i := strings.LastIndex(string(p), Separator)
	if i < 0 {
		return "", false
	}
	return p[:i], true
}

// Ancestors returns every proper ancestor, from the root label down to the immediate parent.
func (p Path) Ancestors() []Path {
	labels := p.Labels()
	if len(labels) < 2 {
		return nil
	}
	out := make([]Path, 0, len(labels)-1)
	for i := 1; i < len(labels); i++ {
		out = append(out, Path(strings.Join(labels[:i], Separator)))
	}
	return out
}

// Lineage returns the ancestors followed by p itself.
// A document tagged with its lineage matches a subtree query on any of its ancestors.
func (p Path) Lineage() []Path {
	if p == "" {
		return nil
	}
	return append(p.Ancestors(), p)
}

// Subject returns the first label (the syllabus code, e.g. "9709").
func (p Path) Subject() string {
	s, _, _ := strings.Cut(string(p), Separator)
	return s
}

// IsUnmapped reports whether p is the reserved unmapped sentinel.
func (p Path) IsUnmapped() bool { return p == Unmapped }

// Contains reports whether other is p or one of its descendants.
func (p Path) Contains(other string) bool { return IsDescendantOf(other, string(p)) }

// validate trims input and checks characters and label structure.
func validate(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", newError(CodeEmpty, input, "topic path cannot be empty")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' && !isLowerLabelChar(c) && (c < 'A' || c > 'Z') {
			return "", newError(CodeInvalidFormat, input,
				"topic path contains invalid characters: only alphanumerics and underscore, dot-separated, got %q", s)
		}
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) ||
		strings.Contains(s, Separator+Separator) {
		return "", newError(CodeInvalidStructure, input,
			"topic path has an empty label (leading, trailing or consecutive dots), got %q", s)
	}
	return s, nil
}

func isLowerLabelChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_'
}

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}
