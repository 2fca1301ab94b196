// Package crs normalizes coordinate reference system descriptions.
//
// A *CRS is an immutable descriptor built once from user input: an
// authority string ("EPSG:4326"), a numeric EPSG code, a URN, a PROJ string,
// a WKT1/WKT2 string, a PROJJSON-like map or an already built *CRS.
// Two descriptors are equal when they denote the same reference system:
// same authority and code when both carry one, otherwise same normalized
// definition.
//
// The package does not transform coordinates.
package crs

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	xerrors "github.com/qri-io/xproj/errors"
)

// AuthorityEPSG is the EPSG geodetic parameter registry authority.
const AuthorityEPSG = "EPSG"

// CRS is a normalized coordinate reference system descriptor.
type CRS struct {
	authority string
	code      string
	name      string
	// definition holds a normalized WKT or PROJ string when the input
	// didn't resolve to an authority code.
	definition string
}

// EPSGer is implemented by projections identified by an EPSG code.
type EPSGer interface {
	EPSG() int
}

// FromEPSG returns the descriptor of an EPSG code.
func FromEPSG(code int) (*CRS, error) {
	if code <= 0 {
		return nil, invalidf("invalid EPSG code %d", code)
	}
	return fromAuthority(AuthorityEPSG, strconv.Itoa(code))
}

// MustFromUserInput is FromUserInput that panics on error. Intended for
// package level variables and tests.
func MustFromUserInput(v any) *CRS {
	c, err := FromUserInput(v)
	if err != nil {
		panic(err)
	}
	return c
}

// FromUserInput normalizes v into a descriptor. Normalizing a *CRS returns
// it unchanged.
func FromUserInput(v any) (*CRS, error) {
	switch x := v.(type) {
	case nil:
		return nil, invalidf("cannot build a CRS from nil")
	case *CRS:
		if x == nil {
			return nil, invalidf("cannot build a CRS from nil")
		}
		return x, nil
	case CRS:
		return &x, nil
	case int:
		return FromEPSG(x)
	case int32:
		return FromEPSG(int(x))
	case int64:
		return FromEPSG(int(x))
	case uint:
		return FromEPSG(int(x))
	case uint16:
		return FromEPSG(int(x))
	case uint32:
		return FromEPSG(int(x))
	case EPSGer:
		return FromEPSG(x.EPSG())
	case string:
		return fromString(x)
	case map[string]any:
		return fromJSONMap(x)
	default:
		return nil, invalidf("cannot build a CRS from %T", v)
	}
}

// Equal reports whether a and b denote the same reference system. Two nil
// descriptors are equal.
func Equal(a, b *CRS) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Equal reports whether c and other denote the same reference system.
func (c *CRS) Equal(other *CRS) bool {
	if c == nil || other == nil {
		return c == nil && other == nil
	}
	if c.authority != "" || other.authority != "" {
		return c.authority == other.authority && c.code == other.code
	}
	return c.definition == other.definition
}

// Authority returns the authority name and code, if any.
func (c *CRS) Authority() (authority, code string, ok bool) {
	if c.authority == "" {
		return "", "", false
	}
	return c.authority, c.code, true
}

// EPSG returns the EPSG code or 0 when the descriptor has none.
func (c *CRS) EPSG() int {
	if c.authority != AuthorityEPSG {
		return 0
	}
	n, _ := strconv.Atoi(c.code)
	return n
}

// Name returns a human readable name, possibly empty.
func (c *CRS) Name() string {
	return c.name
}

// String returns "AUTHORITY:CODE" or the normalized definition.
func (c *CRS) String() string {
	if c == nil {
		return "None"
	}
	if c.authority != "" {
		return c.authority + ":" + c.code
	}
	return c.definition
}

// GoString renders the descriptor for debugging.
func (c *CRS) GoString() string {
	if c == nil {
		return "<CRS: None>"
	}
	if c.name != "" {
		return fmt.Sprintf("<CRS: %s>\nName: %s", c.String(), c.name)
	}
	return fmt.Sprintf("<CRS: %s>", c.String())
}

func fromAuthority(authority, code string) (*CRS, error) {
	authority = strings.ToUpper(strings.TrimSpace(authority))
	code = strings.TrimSpace(code)
	if authority == "" || code == "" {
		return nil, invalidf("invalid authority code %q:%q", authority, code)
	}
	if !isIdent(authority) || !isIdent(code) {
		return nil, invalidf("invalid authority code %q:%q", authority, code)
	}

	c := &CRS{authority: authority, code: strings.ToUpper(code)}
	if authority == AuthorityEPSG {
		n, err := strconv.Atoi(code)
		if err != nil || n <= 0 {
			return nil, invalidf("invalid EPSG code %q", code)
		}
		c.code = strconv.Itoa(n)
		c.name = epsgName(n)
	}
	return c, nil
}

func fromString(s string) (*CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidf("cannot build a CRS from an empty string")
	}

	switch {
	case isDigits(s):
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, invalidf("invalid EPSG code %q", s)
		}
		return FromEPSG(n)
	case strings.HasPrefix(strings.ToLower(s), "urn:ogc:def:crs:"):
		return fromURN(s)
	case strings.HasPrefix(s, "http://www.opengis.net/def/crs/"),
		strings.HasPrefix(s, "https://www.opengis.net/def/crs/"):
		return fromURI(s)
	case looksLikeWKT(s):
		return fromWKT(s)
	case strings.HasPrefix(s, "+") || strings.Contains(s, "proj="):
		return fromProjString(s)
	}

	if auth, code, ok := strings.Cut(s, ":"); ok {
		return fromAuthority(auth, code)
	}
	return nil, invalidf("invalid CRS input %q", s)
}

// urn:ogc:def:crs:EPSG::4326 or urn:ogc:def:crs:EPSG:9.8.15:4326
func fromURN(s string) (*CRS, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 6 {
		return nil, invalidf("invalid CRS URN %q", s)
	}
	return fromAuthority(parts[4], parts[len(parts)-1])
}

// http://www.opengis.net/def/crs/EPSG/0/4326
func fromURI(s string) (*CRS, error) {
	_, rest, _ := strings.Cut(s, "/def/crs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 {
		return nil, invalidf("invalid CRS URI %q", s)
	}
	return fromAuthority(parts[0], parts[2])
}

func fromProjString(s string) (*CRS, error) {
	var params []string
	for _, field := range strings.Fields(s) {
		field = strings.TrimPrefix(field, "+")
		if field == "" {
			continue
		}
		key, val, hasVal := strings.Cut(field, "=")
		key = strings.ToLower(key)
		switch key {
		case "init":
			auth, code, ok := strings.Cut(val, ":")
			if !ok {
				return nil, invalidf("invalid PROJ init %q", val)
			}
			return fromAuthority(auth, code)
		case "type":
			// "+type=crs" only marks the string as a CRS definition
			continue
		}
		if hasVal {
			params = append(params, "+"+key+"="+val)
		} else {
			params = append(params, "+"+key)
		}
	}

	proj := ""
	for _, p := range params {
		if strings.HasPrefix(p, "+proj=") {
			proj = strings.TrimPrefix(p, "+proj=")
		}
	}
	if proj == "" {
		return nil, invalidf("invalid PROJ string %q: missing +proj", s)
	}

	slices.Sort(params)
	return &CRS{
		definition: strings.Join(params, " "),
		name:       "unknown (" + proj + ")",
	}, nil
}

func fromJSONMap(m map[string]any) (*CRS, error) {
	id, ok := m["id"].(map[string]any)
	if !ok {
		return nil, invalidf("PROJJSON input without an \"id\" member is not supported")
	}
	auth, _ := id["authority"].(string)
	var code string
	switch v := id["code"].(type) {
	case string:
		code = v
	case float64:
		code = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		code = strconv.Itoa(v)
	default:
		return nil, invalidf("invalid PROJJSON id code %v", id["code"])
	}

	c, err := fromAuthority(auth, code)
	if err != nil {
		return nil, err
	}
	if name, ok := m["name"].(string); ok && name != "" {
		c.name = name
	}
	return c, nil
}

func invalidf(format string, args ...any) error {
	return xerrors.Newf(xerrors.ErrCodeInvalidInput, format, args...)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return s != ""
}
