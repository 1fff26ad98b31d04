// internal/navigation/transforms.go
package navigation

import (
	"net/url"
	"regexp"
	"strings"
)

// Transform derives an alternate URL from the primary one. ok is false when the
// transform does not apply.
type Transform func(primary string) (alt string, ok bool)

var localeSegment = regexp.MustCompile(`^[a-zA-Z]{2}(-[a-zA-Z]{2})?$`)

// StripLocaleSegment removes a leading locale path segment such as "/en" or "/ar-sa".
func StripLocaleSegment(primary string) (string, bool) {
	u, err := url.Parse(primary)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) == 0 || !localeSegment.MatchString(segments[0]) {
		return "", false
	}
	u.Path = "/" + strings.Join(segments[1:], "/")
	return u.String(), true
}

// SwapLocale returns a transform that replaces the leading locale segment from with to.
func SwapLocale(from, to string) Transform {
	return func(primary string) (string, bool) {
		u, err := url.Parse(primary)
		if err != nil {
			return "", false
		}
		segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
		if len(segments) == 0 || !strings.EqualFold(segments[0], from) {
			return "", false
		}
		segments[0] = to
		u.Path = "/" + strings.Join(segments, "/")
		return u.String(), true
	}
}

// DefaultTransforms strips the locale first and then swaps English for Arabic and back.
func DefaultTransforms() []Transform {
	return []Transform{StripLocaleSegment, SwapLocale("en", "ar"), SwapLocale("ar", "en")}
}
