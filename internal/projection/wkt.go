package projection

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"parcelview/internal/errors"
)

// wktNode is one KEYWORD[...] element of a WKT string.
type wktNode struct {
	Keyword  string
	Strings  []string
	Numbers  []float64
	Children []*wktNode
}

// find returns the first descendant (depth-first, self included) whose
// keyword is one of kws.
func (n *wktNode) find(kws ...string) *wktNode {
	for _, kw := range kws {
		if strings.EqualFold(n.Keyword, kw) {
			return n
		}
	}
	for _, c := range n.Children {
		if f := c.find(kws...); f != nil {
			return f
		}
	}
	return nil
}

// direct returns the direct children whose keyword is one of kws.
func (n *wktNode) direct(kws ...string) []*wktNode {
	var out []*wktNode
	for _, c := range n.Children {
		for _, kw := range kws {
			if strings.EqualFold(c.Keyword, kw) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (n *wktNode) name() string {
	if len(n.Strings) > 0 {
		return n.Strings[0]
	}
	return ""
}

type wktParser struct {
	s   string
	pos int
}

func parseWKT(s string) (*wktNode, error) {
	p := &wktParser{s: s}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.s) && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *wktParser) node() (*wktNode, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && (unicode.IsLetter(rune(p.s[p.pos])) || unicode.IsDigit(rune(p.s[p.pos])) || p.s[p.pos] == '_') {
		p.pos++
	}
	if p.pos == start {
		return nil, fmt.Errorf("wkt: expected keyword at offset %d", p.pos)
	}
	n := &wktNode{Keyword: strings.ToUpper(p.s[start:p.pos])}
	p.skipSpace()
	if p.pos >= len(p.s) || (p.s[p.pos] != '[' && p.s[p.pos] != '(') {
		return n, nil // bare enum value such as AXIS["X",EAST]
	}
	closer := byte(']')
	if p.s[p.pos] == '(' {
		closer = ')'
	}
	p.pos++
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("wkt: unterminated %s", n.Keyword)
		}
		c := p.s[p.pos]
		switch {
		case c == closer:
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
		case c == '"':
			end := strings.IndexByte(p.s[p.pos+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("wkt: unterminated string in %s", n.Keyword)
			}
			n.Strings = append(n.Strings, p.s[p.pos+1:p.pos+1+end])
			p.pos += end + 2
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			start := p.pos
			p.pos++
			for p.pos < len(p.s) && strings.IndexByte("0123456789.eE+-", p.s[p.pos]) >= 0 {
				p.pos++
			}
			v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
			if err != nil {
				return nil, fmt.Errorf("wkt: bad number %q", p.s[start:p.pos])
			}
			n.Numbers = append(n.Numbers, v)
		default:
			child, err := p.node()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	}
}

// normalizeName folds WKT names so that "Standard_Parallel_1",
// "standard_parallel_1" and "Standard Parallel 1" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isWGS84Datum reports whether a datum is close enough to WGS84 that
// coordinates can be drawn on web map tiles without a datum shift.
func isWGS84Datum(name string) bool {
	switch normalizeName(name) {
	case "wgs1984", "dwgs1984", "wgs84", "worldgeodeticsystem1984",
		"northamericandatum1983", "dnorthamerican1983", "nad83",
		"northamericandatum1983harn", "dnorthamerican1983harn", "nad83harn",
		"northamericandatum19832011", "nad832011",
		"europeanterrestrialreferencesystem1989":
		return true
	}
	return false
}

// FromWKT parses an ESRI .prj or OGC/ISO WKT definition.
func FromWKT(s string) (CRS, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if s == "" {
		return CRS{}, errors.New(errors.ErrCodeProjection, "empty CRS definition")
	}
	root, err := parseWKT(s)
	if err != nil {
		return CRS{}, errors.Wrap(errors.ErrCodeProjection, err, "parse CRS definition")
	}

	c := CRS{Name: root.name(), EPSG: authorityCode(root)}

	switch root.Keyword {
	case "GEOGCS", "GEOGCRS", "GEODCRS", "GEOGRAPHICCRS":
		if c.EPSG != 0 {
			if known, err := FromEPSG(c.EPSG); err == nil && known.Kind == Geographic {
				return known, nil
			}
		}
		datum := root.find("DATUM", "TRF", "GEODETICDATUM")
		if datum == nil || !isWGS84Datum(datum.name()) {
			return CRS{}, errors.New(errors.ErrCodeProjection, "geographic CRS %q is not on a WGS84-equivalent datum", c.Name)
		}
		c.Kind = Geographic
		return c, nil

	case "PROJCS", "PROJCRS", "PROJECTEDCRS":
		if c.EPSG != 0 {
			if known, err := FromEPSG(c.EPSG); err == nil {
				return known, nil
			}
		}
		return projectedFromWKT(root, c)
	}
	return CRS{}, errors.New(errors.ErrCodeProjection, "unsupported CRS type %s", root.Keyword)
}

func projectedFromWKT(root *wktNode, c CRS) (CRS, error) {
	method := root.find("PROJECTION", "METHOD")
	if method == nil {
		return CRS{}, errors.New(errors.ErrCodeProjection, "projected CRS %q has no projection method", c.Name)
	}
	m := normalizeName(method.name())

	switch {
	case strings.Contains(m, "mercatorauxiliarysphere") || strings.Contains(m, "pseudomercator") ||
		strings.Contains(normalizeName(c.Name), "pseudomercator"):
		c.Kind = WebMercator
		return c, nil

	case strings.Contains(m, "lambertconformalconic") || strings.Contains(m, "lambertconicconformal"):
		c.Kind = LambertConformalConic
	default:
		return CRS{}, errors.New(errors.ErrCodeProjection, "unsupported projection %q", method.name())
	}

	params := map[string]float64{}
	for _, p := range root.direct("PARAMETER") {
		if len(p.Numbers) > 0 {
			params[normalizeName(p.name())] = p.Numbers[0]
		}
	}
	if cs := root.find("CONVERSION"); cs != nil {
		for _, p := range cs.direct("PARAMETER") {
			if len(p.Numbers) > 0 {
				params[normalizeName(p.name())] = p.Numbers[0]
			}
		}
	}
	pick := func(keys ...string) float64 {
		for _, k := range keys {
			if v, ok := params[k]; ok {
				return v
			}
		}
		return 0
	}
	c.StdParallel1 = pick("standardparallel1", "latitudeof1ststandardparallel")
	c.StdParallel2 = pick("standardparallel2", "latitudeof2ndstandardparallel")
	if _, ok := params["standardparallel2"]; !ok {
		if _, ok := params["latitudeof2ndstandardparallel"]; !ok {
			c.StdParallel2 = c.StdParallel1
		}
	}
	c.LatOrigin = pick("latitudeoforigin", "latitudeoffalseorigin", "latitudeofnaturalorigin")
	c.CentralMerid = pick("centralmeridian", "longitudeoffalseorigin", "longitudeofnaturalorigin", "longitudeoforigin")
	c.FalseEasting = pick("falseeasting", "eastingatfalseorigin")
	c.FalseNorthing = pick("falsenorthing", "northingatfalseorigin")

	if sph := root.find("SPHEROID", "ELLIPSOID"); sph != nil && len(sph.Numbers) >= 2 {
		c.SemiMajor = sph.Numbers[0]
		c.InvFlattening = sph.Numbers[1]
	}

	// The projected linear unit is the last UNIT element at the top level.
	c.UnitMeters = 1
	if units := root.direct("UNIT", "LENGTHUNIT"); len(units) > 0 {
		if u := units[len(units)-1]; len(u.Numbers) > 0 && u.Numbers[0] > 0 {
			c.UnitMeters = u.Numbers[0]
		}
	} else if u := root.find("LENGTHUNIT"); u != nil && len(u.Numbers) > 0 && u.Numbers[0] > 0 {
		c.UnitMeters = u.Numbers[0] // WKT2 attaches the unit to each axis
	}
	if c.StdParallel1 == 0 && c.StdParallel2 == 0 {
		return CRS{}, errors.New(errors.ErrCodeProjection, "projected CRS %q is missing standard parallels", c.Name)
	}
	return c, nil
}

// authorityCode returns the EPSG code attached directly to the root element.
func authorityCode(root *wktNode) int {
	for _, a := range root.direct("AUTHORITY", "ID") {
		if len(a.Strings) == 0 || !strings.EqualFold(a.Strings[0], "EPSG") {
			continue
		}
		if len(a.Strings) > 1 {
			if n, err := strconv.Atoi(a.Strings[1]); err == nil {
				return n
			}
		}
		if len(a.Numbers) > 0 {
			return int(a.Numbers[0])
		}
	}
	return 0
}

// FromEPSG resolves the EPSG codes the viewer knows without a WKT definition.
func FromEPSG(code int) (CRS, error) {
	switch code {
	case 4326:
		return WGS84, nil
	case 4269:
		return CRS{Name: "NAD83", EPSG: 4269, Kind: Geographic}, nil
	case 4152:
		return CRS{Name: "NAD83(HARN)", EPSG: 4152, Kind: Geographic}, nil
	case 6318:
		return CRS{Name: "NAD83(2011)", EPSG: 6318, Kind: Geographic}, nil
	case 3857, 900913, 102100, 102113:
		return CRS{Name: "WGS 84 / Pseudo-Mercator", EPSG: code, Kind: WebMercator}, nil
	case 2276:
		return TexasNorthCentral, nil
	}
	return CRS{}, errors.New(errors.ErrCodeProjection, "EPSG:%d is not supported without a WKT definition", code)
}
