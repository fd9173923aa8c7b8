package framework

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsFilter selects tests the way "go test -run" does: a MustMatch pattern is split on "/"
// and each part is matched against the path element at the same depth, as far as both
// go. So "^home page$" selects the group and everything in it, and "home/status" selects
// the matching subtests of the matching groups. MustNotMatch patterns are matched against
// the whole slash-separated ID.
func (r RegexFilters) AsFilter(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.anyMatchByElement(id)) &&
		!r.MustNotMatch.AnyMatch(id.String())
}

type RegexList struct {
	patterns []*regexp.Regexp
	parts    [][]*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	r.parts = append(r.parts, splitPattern(value))
	return nil
}

// splitPattern returns nil if any part is not a valid regex by itself, such as a "/" inside
// a character class. Such a pattern is matched against the whole ID instead.
func splitPattern(value string) []*regexp.Regexp {
	var ret []*regexp.Regexp
	for _, part := range strings.Split(value, "/") {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil
		}
		ret = append(ret, rx)
	}
	return ret
}

func (r RegexList) anyMatchByElement(id TestID) bool {
	for i, parts := range r.parts {
		if parts == nil {
			if r.patterns[i].MatchString(id.String()) {
				return true
			}
			continue
		}
		matched := true
		for depth := 0; depth < len(parts) && depth < len(id.Path); depth++ {
			if !parts[depth].MatchString(id.Path[depth]) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func PrintFilterDescription(w io.Writer, filters RegexFilters) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(w, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(w, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(w)
	}
}
