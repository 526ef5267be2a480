package bypass

import (
	"net/http"
	"testing"
)

func TestDetectors(t *testing.T) {
	tests := []struct {
		name   string
		det    Detector
		res    Response
		want   bool
		source string
	}{
		{
			name: "cloudflare not blocked",
			det:  detectCloudflare,
			res:  Response{StatusCode: 200, Header: http.Header{"Server": {"nginx"}}, Body: []byte("OK")},
		},
		{
			name:   "cloudflare by header",
			det:    detectCloudflare,
			res:    Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}, Body: []byte("Access Denied")},
			want:   true,
			source: "Cloudflare",
		},
		{
			name:   "cloudflare by body",
			det:    detectCloudflare,
			res:    Response{StatusCode: 503, Body: []byte("<html>... cf-turnstile ...</html>")},
			want:   true,
			source: "Cloudflare",
		},
		{
			name:   "akamai reference page",
			det:    detectAkamai,
			res:    Response{StatusCode: 403, Body: []byte("Access Denied. Reference #18.abc")},
			want:   true,
			source: "Akamai",
		},
		{
			name:   "datadome header",
			det:    detectDataDome,
			res:    Response{StatusCode: 403, Header: http.Header{"X-Datadome": {"protected"}}},
			want:   true,
			source: "DataDome",
		},
		{
			name: "datadome needs 403",
			det:  detectDataDome,
			res:  Response{StatusCode: 200, Body: []byte("datadome")},
		},
		{
			name:   "perimeterx body",
			det:    detectPerimeterX,
			res:    Response{StatusCode: 403, Body: []byte(`<div id="px-captcha"></div>`)},
			want:   true,
			source: "PerimeterX",
		},
		{
			name:   "marketplace captcha with 200",
			det:    detectRetailCaptcha,
			res:    Response{StatusCode: 200, Body: []byte(`<form action="/errors/validateCaptcha">`)},
			want:   true,
			source: "RetailCaptcha",
		},
		{
			name: "ordinary product page",
			det:  detectRetailCaptcha,
			res:  Response{StatusCode: 200, Body: []byte("Dell XPS 13 - $899.00")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := tt.det(tt.res)
			if got != tt.want || src != tt.source {
				t.Errorf("got (%v, %q), want (%v, %q)", got, src, tt.want, tt.source)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	blocked := Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}}
	v := Analyze(blocked, DefaultDetectors())
	if !v.Detected || v.Source != "Cloudflare" {
		t.Errorf("expected Cloudflare verdict, got %+v", v)
	}

	clean := Response{StatusCode: 200, Body: []byte("Price: $120")}
	if v := Analyze(clean, DefaultDetectors()); v.Detected {
		t.Errorf("expected clean page, got %+v", v)
	}

	if v := Analyze(blocked, nil); v.Detected {
		t.Errorf("expected no verdict without detectors, got %+v", v)
	}
}
