package cookies

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date layouts seen in Expires attributes in the wild.
var expiresLayouts = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.ANSIC,
}

// SplitSetCookie splits a Set-Cookie header value that may contain several
// cookies concatenated with commas into individual cookie strings.
//
// A comma is only a cookie boundary when the token following it looks like
// the start of a new name=value pair; commas embedded in an Expires date
// ("Expires=Sat, 20 Dec 2025 ...") are left alone because the text after
// them reaches a comma or semicolon before any "=".
func SplitSetCookie(value string) []string {
	var parts []string
	start := 0
	pos := 0

	for pos < len(value) {
		if value[pos] != ',' {
			pos++
			continue
		}

		// Look ahead past whitespace for a name=value start.
		ahead := pos + 1
		for ahead < len(value) && (value[ahead] == ' ' || value[ahead] == '\t') {
			ahead++
		}
		probe := ahead
		for probe < len(value) && value[probe] != '=' && value[probe] != ';' && value[probe] != ',' {
			probe++
		}

		if probe < len(value) && value[probe] == '=' && probe > ahead {
			parts = append(parts, strings.TrimSpace(value[start:pos]))
			start = ahead
			pos = ahead
			continue
		}
		pos++
	}

	if tail := strings.TrimSpace(value[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// parseSetCookie parses one cookie string into a Cookie. defaultDomain and
// defaultPath fill in the domain/path attributes when the header omits them.
func parseSetCookie(raw, defaultDomain, defaultPath string) (Cookie, error) {
	segments := strings.Split(raw, ";")

	name, value, found := strings.Cut(strings.TrimSpace(segments[0]), "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return Cookie{}, fmt.Errorf("malformed cookie pair %q", segments[0])
	}

	c := Cookie{
		Name:   name,
		Value:  strings.TrimSpace(value),
		Domain: defaultDomain,
		Path:   defaultPath,
	}

	for _, segment := range segments[1:] {
		attr, attrValue, _ := strings.Cut(strings.TrimSpace(segment), "=")
		attrValue = strings.TrimSpace(attrValue)

		switch strings.ToLower(strings.TrimSpace(attr)) {
		case "expires":
			for _, layout := range expiresLayouts {
				if t, err := time.Parse(layout, attrValue); err == nil {
					c.Expires = t
					break
				}
			}
		case "max-age":
			// Zero or negative means delete now; normalize to -1 so a
			// present zero is distinguishable from an absent attribute.
			if seconds, err := strconv.Atoi(attrValue); err == nil {
				if seconds <= 0 {
					seconds = -1
				}
				c.MaxAge = seconds
			}
		case "domain":
			if attrValue != "" {
				c.Domain = strings.TrimPrefix(attrValue, ".")
			}
		case "path":
			if attrValue != "" {
				c.Path = attrValue
			}
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "samesite":
			c.SameSite = attrValue
		}
	}

	return c, nil
}
