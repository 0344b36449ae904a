package leadintel

import (
	"regexp"
	"strings"
)

const (
	placeholderCity  = "Unknown City"
	placeholderState = "Unknown"
)

// fullAddressRe matches "street, city, ST 12345" with an optional ZIP+4.
var fullAddressRe = regexp.MustCompile(`^(.+?),\s*([^,]+?),\s*([A-Za-z]{2})\.?,?\s+(\d{5})(?:-\d{4})?$`)

var (
	trailingZipRe = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?$`)
	stateTokenRe  = regexp.MustCompile(`^[A-Za-z]{2}\.?$`)
)

// ParseAddress is best-effort: a full "street, city, ST zip" string parses
// into components, and anything short of that degrades to placeholders rather
// than rejecting the input. Explicit Options fields always win over whatever
// was extracted.
func ParseAddress(input string, opts Options) ParsedAddress {
	full := strings.Join(strings.Fields(input), " ")
	addr := ParsedAddress{
		Street:      full,
		City:        placeholderCity,
		State:       placeholderState,
		FullAddress: full,
	}

	if m := fullAddressRe.FindStringSubmatch(full); m != nil {
		addr.Street = strings.TrimSpace(m[1])
		addr.City = strings.TrimSpace(m[2])
		addr.State = strings.ToUpper(m[3])
		addr.ZipCode = m[4]
	} else {
		parseLooseAddress(full, &addr)
	}

	if v := strings.TrimSpace(opts.City); v != "" {
		addr.City = v
	}
	if v := strings.TrimSpace(opts.State); v != "" {
		addr.State = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(opts.ZipCode); v != "" {
		addr.ZipCode = v
	}
	return addr
}

func parseLooseAddress(full string, addr *ParsedAddress) {
	parts := strings.Split(full, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		if m := trailingZipRe.FindStringSubmatch(full); m != nil {
			addr.ZipCode = m[1]
			addr.Street = strings.TrimSpace(strings.TrimSuffix(full, m[0]))
		}
		return
	}

	addr.Street = parts[0]
	rest := parts[1:]

	last := rest[len(rest)-1]
	if m := trailingZipRe.FindStringSubmatch(last); m != nil {
		addr.ZipCode = m[1]
		last = strings.TrimSpace(strings.TrimSuffix(last, m[0]))
		if last == "" {
			rest = rest[:len(rest)-1]
		} else {
			rest[len(rest)-1] = last
		}
	}

	if len(rest) > 0 {
		tail := rest[len(rest)-1]
		fields := strings.Fields(tail)
		if len(fields) > 0 && stateTokenRe.MatchString(fields[len(fields)-1]) {
			addr.State = strings.ToUpper(strings.TrimSuffix(fields[len(fields)-1], "."))
			tail = strings.TrimSpace(strings.Join(fields[:len(fields)-1], " "))
			if tail == "" {
				rest = rest[:len(rest)-1]
			} else {
				rest[len(rest)-1] = tail
			}
		}
	}

	if len(rest) > 0 && rest[0] != "" {
		addr.City = rest[0]
	}
}

// CacheKey lowercases the full address and strips everything outside [a-z0-9]
// so trivially different spellings of the same address share a cache slot.
func CacheKey(address string) string {
	var b strings.Builder
	b.Grow(len(address))
	for _, r := range strings.ToLower(address) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
