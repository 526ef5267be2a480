package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Verdict is the outcome of running a page through the detectors.
type Verdict struct {
	Detected bool
	Source   string // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome", "RetailCaptcha"
}

// Detector reports whether a bot protection layer challenged or blocked the
// request instead of serving the listing.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectRetailCaptcha,
	}
}

// Analyze runs res through detectors and returns the first positive verdict.
// A challenged listing page carries no usable prices.
func Analyze(res Response, detectors []Detector) Verdict {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return Verdict{Detected: true, Source: source}
		}
	}
	return Verdict{}
}

func header(h http.Header, key string) string {
	if h == nil {
		return ""
	}
	return h.Get(key)
}

func detectCloudflare(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res.Header, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if bytes.Contains(res.Body, []byte(sig)) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res.Header, "Server")), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res.Header, "Server")), "datadome") {
		return true, "DataDome"
	}
	if header(res.Header, "X-DataDome") != "" || header(res.Header, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(res.Body, []byte("datadome")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(res.Header, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	for _, sig := range []string{"client.perimeterx.net", "px-captcha", "_pxBlock"} {
		if bytes.Contains(res.Body, []byte(sig)) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}

// detectRetailCaptcha catches marketplace interstitials that answer 200 with
// a captcha form instead of the product page.
func detectRetailCaptcha(res Response) (bool, string) {
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	for _, sig := range []string{"/errors/validateCaptcha", "api-services-support@amazon.com", "Pardon Our Interruption"} {
		if bytes.Contains(res.Body, []byte(sig)) {
			return true, "RetailCaptcha"
		}
	}
	return false, ""
}
