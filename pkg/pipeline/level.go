package pipeline

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// Level names an abstraction level: an encoder exit point and the decoder
// that inverts it, e.g. "relu4_1".
type Level string

// DefaultTargets walks the VGG-style pyramid from coarse to fine.
var DefaultTargets = []Level{"relu5_1", "relu4_1", "relu3_1", "relu2_1", "relu1_1"}

// LevelTag turns a shorthand depth such as "4" into "relu4_1". Any other
// string is returned unchanged.
func LevelTag(s string) Level {
	s = strings.TrimSpace(s)
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return Level(fmt.Sprintf("relu%s_1", s))
	}
	return Level(s)
}

// ParseLevels converts user input into an ordered level list. Entries may be
// full tags or shorthand depths; order is preserved.
func ParseLevels(in []string) ([]Level, error) {
	out := make([]Level, 0, len(in))
	for _, s := range in {
		out = append(out, LevelTag(s))
	}
	if err := errors.ValidateLevels(levelStrings(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// Depth returns K for a "reluK_1" tag, or 0 when the tag has another form.
func (l Level) Depth() int {
	var k, sub int
	if n, err := fmt.Sscanf(string(l), "relu%d_%d", &k, &sub); err != nil || n != 2 || sub != 1 {
		return 0
	}
	if string(l) != fmt.Sprintf("relu%d_1", k) {
		return 0
	}
	return k
}

func levelStrings(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
