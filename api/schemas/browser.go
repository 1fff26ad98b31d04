package schemas

import (
	"fmt"
	"strings"
)

// -- Browser Persona Schemas --

// UserAgentBrandVersion is a local replacement for emulation.UserAgentBrandVersion.
type UserAgentBrandVersion struct {
	Brand   string `json:"brand" mapstructure:"brand"`
	Version string `json:"version" mapstructure:"version"`
}

// ClientHints defines the User-Agent Client Hints data.
type ClientHints struct {
	Platform        string                   `json:"platform" mapstructure:"platform"`
	PlatformVersion string                   `json:"platformVersion" mapstructure:"platform_version"`
	Architecture    string                   `json:"architecture" mapstructure:"architecture"`
	Bitness         string                   `json:"bitness" mapstructure:"bitness"`
	Mobile          bool                     `json:"mobile" mapstructure:"mobile"`
	Brands          []*UserAgentBrandVersion `json:"brands" mapstructure:"brands"`
}

// Persona encapsulates all properties for a consistent browser fingerprint.
type Persona struct {
	UserAgent       string       `json:"userAgent" mapstructure:"user_agent"`
	Platform        string       `json:"platform" mapstructure:"platform"`
	Languages       []string     `json:"languages" mapstructure:"languages"`
	Width           int64        `json:"width" mapstructure:"width"`
	Height          int64        `json:"height" mapstructure:"height"`
	Mobile          bool         `json:"mobile" mapstructure:"mobile"`
	Timezone        string       `json:"timezoneId" mapstructure:"timezone"`
	Locale          string       `json:"locale" mapstructure:"locale"`
	ClientHintsData *ClientHints `json:"clientHintsData,omitempty" mapstructure:"client_hints"`
}

// AcceptLanguage renders Languages as an HTTP Accept-Language header value with descending q weights.
func (p Persona) AcceptLanguage() string {
	var b strings.Builder
	for i, lang := range p.Languages {
		if i == 0 {
			b.WriteString(lang)
			continue
		}
		q := 10 - i
		if q < 1 {
			q = 1
		}
		fmt.Fprintf(&b, ",%s;q=0.%d", lang, q)
	}
	return b.String()
}

// DefaultPersona is a desktop Chrome profile that presents the bilingual locale the booking site serves.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en", "ar-SA", "ar"},
	Width:     1366,
	Height:    900,
	Mobile:    false,
	Timezone:  "Asia/Riyadh",
	Locale:    "en-US",
	ClientHintsData: &ClientHints{
		Platform:        "Windows",
		PlatformVersion: "10.0.0",
		Architecture:    "x86",
		Bitness:         "64",
		Brands: []*UserAgentBrandVersion{
			{Brand: "Google Chrome", Version: "131"},
			{Brand: "Chromium", Version: "131"},
			{Brand: "Not_A Brand", Version: "24"},
		},
	},
}
