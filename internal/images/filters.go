// Package images resolves a usable lead image for an article through a
// prioritized candidate cascade backed by a verification cache.
package images

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Each rejection heuristic is a small named predicate; FilterCandidate
// composes them with explicit short-circuits.

// Known image-optimizer/proxy prefixes whose target URL rides in a query
// parameter or path suffix.
var optimizerParams = []string{"url", "src", "image"}

var optimizerHosts = map[string]struct{}{
	"i0.wp.com":          {},
	"i1.wp.com":          {},
	"i2.wp.com":          {},
	"cdn-cgi":            {},
	"images.weserv.nl":   {},
	"wsrv.nl":            {},
	"res.cloudinary.com": {},
	"imagecdn.app":       {},
	"optimole.com":       {},
	"cdn.shortpixel.ai":  {},
}

// Unproxy unwraps known image-optimizer URLs so the cascade verifies the
// origin image instead of the proxy.
func Unproxy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.ToLower(u.Hostname())

	if _, known := optimizerHosts[host]; !known {
		// wp.com-style proxies also appear as iN.wp.com subdomain variants.
		if !strings.HasSuffix(host, ".wp.com") {
			return raw
		}
	}

	for _, param := range optimizerParams {
		target := u.Query().Get(param)
		if target == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(target); err == nil {
			target = decoded
		}
		if !strings.HasPrefix(target, "http") {
			target = "https://" + strings.TrimPrefix(target, "//")
		}
		if _, err := url.Parse(target); err == nil {
			return target
		}
	}

	// wp.com proxies embed the origin in the path: i0.wp.com/example.com/img.jpg
	if strings.HasSuffix(host, ".wp.com") {
		path := strings.TrimPrefix(u.Path, "/")
		if strings.Contains(path, "/") {
			return "https://" + path
		}
	}
	return raw
}

var signedResizerPattern = regexp.MustCompile(`(?i)[?&](?:signature|sig|token|expires|auth|policy|key-pair-id)=|/image/upload/s--`)

// IsSignedResizer rejects resizer URLs whose signatures make them
// unverifiable and prone to expiry.
func IsSignedResizer(raw string) bool {
	return signedResizerPattern.MatchString(raw)
}

var iconPattern = regexp.MustCompile(`(?i)favicon|\.svg(?:[?#]|$)|sprite|/logos?[/._-]|[-_.]logo[-_.]|placeholder|default[-_]?(?:image|thumb)|blank\.|1x1\.|pixel\.`)

// IsIconOrLogo rejects favicons, SVGs, sprites, logos, and placeholder
// art.
func IsIconOrLogo(raw string) bool {
	return iconPattern.MatchString(raw)
}

var bylinePattern = regexp.MustCompile(`(?i)avatar|headshot[-_]?small|byline|author[-s]?[/_-]|profile[-_]?(?:pic|photo|image)|mugshot|gravatar`)

// IsBylinePortrait rejects author-avatar imagery, by keyword or by
// near-square tiny dimensions declared in the URL.
func IsBylinePortrait(raw string) bool {
	if bylinePattern.MatchString(raw) {
		return true
	}
	w, h, ok := dimensionsFromURL(raw)
	if !ok {
		return false
	}
	return isTinySquare(w, h)
}

// isTinySquare treats anything at most 160px on its long edge with a
// near-1:1 aspect as a portrait thumb.
func isTinySquare(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	long := w
	if h > long {
		long = h
	}
	if long > 160 {
		return false
	}
	ratio := float64(w) / float64(h)
	return ratio > 0.8 && ratio < 1.25
}

// MeetsMinSize rejects images whose URL declares dimensions under the
// minimum. URLs that declare nothing pass; the usability probe still
// checks byte size.
func MeetsMinSize(raw string, minDimension int) bool {
	w, h, ok := dimensionsFromURL(raw)
	if !ok {
		return true
	}
	return w >= minDimension && h >= minDimension
}

var pathDims = regexp.MustCompile(`(?i)[/_-](\d{2,4})x(\d{2,4})(?:[/_.-]|$)`)

// dimensionsFromURL parses declared width/height from query parameters or
// a WxH path segment.
func dimensionsFromURL(raw string) (int, int, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, 0, false
	}
	q := u.Query()
	for _, pair := range [][2]string{{"w", "h"}, {"width", "height"}} {
		w, errW := strconv.Atoi(q.Get(pair[0]))
		h, errH := strconv.Atoi(q.Get(pair[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h, true
		}
	}
	if m := pathDims.FindStringSubmatch(u.Path); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return w, h, true
	}
	return 0, 0, false
}

// FilterCandidate runs one raw candidate through the static rejection
// chain, returning the cleaned URL and whether it survived.
func FilterCandidate(raw string, minDimension int) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	cleaned := Unproxy(raw)
	if IsSignedResizer(cleaned) {
		return "", false
	}
	if IsIconOrLogo(cleaned) {
		return "", false
	}
	if IsBylinePortrait(cleaned) {
		return "", false
	}
	if !MeetsMinSize(cleaned, minDimension) {
		return "", false
	}
	return cleaned, true
}
