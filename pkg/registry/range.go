package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a parsed HTTP Range request covering the inclusive byte
// range [start, end]; hasEnd reports whether the header gave an explicit end.
type byteRange struct {
	start, end int64
	hasEnd     bool
}

// parseRange parses "bytes=start-end" or "bytes=start-" against a known
// total size, resolving an open-ended range to total-1. It returns
// ok=false (mapped to 416 by the caller) when start > end or start >= total.
func parseRange(header string, total int64) (byteRange, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes=") {
		return byteRange{}, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return byteRange{}, false
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return byteRange{}, false
	}

	var end int64
	hasEnd := parts[1] != ""
	if hasEnd {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return byteRange{}, false
		}
	} else {
		end = total - 1
	}

	if start > end || start >= total {
		return byteRange{}, false
	}
	if end >= total {
		end = total - 1
	}

	return byteRange{start: start, end: end, hasEnd: hasEnd}, true
}

func contentRangeHeader(r byteRange, total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, total)
}
