package server

import (
	"net/http"
	"strings"
)

// CSPConfig holds Content-Security-Policy configuration.
type CSPConfig struct {
	// DefaultSrc specifies default source for all directives
	DefaultSrc []string
	// ScriptSrc specifies valid sources for JavaScript
	ScriptSrc []string
	// StyleSrc specifies valid sources for CSS
	StyleSrc []string
	// ImgSrc specifies valid sources for images
	ImgSrc []string
	// ConnectSrc specifies valid sources for fetch, XMLHttpRequest, WebSocket
	ConnectSrc []string
	// FrameAncestors specifies valid parents that may embed the page
	FrameAncestors []string
	// BaseURI restricts URLs that can be used in <base> element
	BaseURI []string
	// FormAction restricts URLs that can be used as form action targets
	FormAction []string
	// UpgradeInsecureRequests forces HTTPS
	UpgradeInsecureRequests bool
}

// DocumentCSPConfig returns the CSP for the document API. Most responses
// are JSON, but document content endpoints return generated HTML that
// carries an inline stylesheet, so style-src must permit 'unsafe-inline'.
// Generated documents never contain scripts or external resources.
func DocumentCSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		StyleSrc:       []string{"'unsafe-inline'"},
		ImgSrc:         []string{"'self'", "data:"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// BuildCSPHeader builds a Content-Security-Policy header value from config.
func (cfg CSPConfig) BuildCSPHeader() string {
	var directives []string

	if len(cfg.DefaultSrc) > 0 {
		directives = append(directives, "default-src "+strings.Join(cfg.DefaultSrc, " "))
	}
	if len(cfg.ScriptSrc) > 0 {
		directives = append(directives, "script-src "+strings.Join(cfg.ScriptSrc, " "))
	}
	if len(cfg.StyleSrc) > 0 {
		directives = append(directives, "style-src "+strings.Join(cfg.StyleSrc, " "))
	}
	if len(cfg.ImgSrc) > 0 {
		directives = append(directives, "img-src "+strings.Join(cfg.ImgSrc, " "))
	}
	if len(cfg.ConnectSrc) > 0 {
		directives = append(directives, "connect-src "+strings.Join(cfg.ConnectSrc, " "))
	}
	if len(cfg.FrameAncestors) > 0 {
		directives = append(directives, "frame-ancestors "+strings.Join(cfg.FrameAncestors, " "))
	}
	if len(cfg.BaseURI) > 0 {
		directives = append(directives, "base-uri "+strings.Join(cfg.BaseURI, " "))
	}
	if len(cfg.FormAction) > 0 {
		directives = append(directives, "form-action "+strings.Join(cfg.FormAction, " "))
	}
	if cfg.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}

	return strings.Join(directives, "; ")
}

// SecurityHeaders adds standard security headers plus the configured CSP
// to all responses.
func SecurityHeaders(cfg CSPConfig, next http.Handler) http.Handler {
	cspHeader := cfg.BuildCSPHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if cspHeader != "" {
			w.Header().Set("Content-Security-Policy", cspHeader)
		}

		next.ServeHTTP(w, r)
	})
}
