package runtime

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var amountNoise = strings.NewReplacer(",", "", " ", "", "円", "", "¥", "", "$", "", "yen", "", "YEN", "")

// ParseAmount reads a money amount such as "30,000円", "¥200000" or "25万".
// Full-width digits are accepted. Negative amounts and amounts that do not
// fit in an int64 are rejected.
func ParseAmount(s string) (int64, bool) {
	s = amountNoise.Replace(norm.NFKC.String(strings.TrimSpace(s)))
	if s == "" {
		return 0, false
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "万"):
		multiplier = 10_000
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "千"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "千")
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 || v > math.MaxInt64/multiplier {
		return 0, false
	}
	return v * multiplier, true
}
