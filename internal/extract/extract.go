// Package extract locates artifact URLs inside heterogeneous provider
// response payloads. Providers in this ecosystem disagree on where the
// generated file lives (images[0].url vs data.images[0].url vs image.url
// vs a bare url), so extraction is modeled as an ordered list of pure
// strategies tried in sequence rather than nested conditionals.
package extract

import (
	"strings"
)

// Strategy probes a decoded JSON payload for an artifact URL.
// It returns the URL and true on a match, or "" and false otherwise.
// Strategies never return errors: a miss just means "try the next one".
type Strategy func(payload map[string]any) (string, bool)

// ImageStrategies is the default probe order for image-generation
// responses. New provider shapes get appended here, not inlined at call
// sites.
var ImageStrategies = []Strategy{
	Path("images", 0, "url"),
	Path("data", "images", 0, "url"),
	Path("image", "url"),
	Path("url"),
}

// FirstURL runs the strategies in order and returns the first match.
// It returns "" when no strategy matches; callers treat that as an empty
// result eligible for fallback, not an error.
func FirstURL(payload map[string]any, strategies []Strategy) string {
	if payload == nil {
		return ""
	}
	for _, s := range strategies {
		if url, ok := s(payload); ok {
			return url
		}
	}
	return ""
}

// Path builds a strategy that walks the payload along the given steps.
// A string step indexes a map, an int step indexes a slice. The walk
// succeeds when it lands on a non-empty string.
func Path(steps ...any) Strategy {
	return func(payload map[string]any) (string, bool) {
		var cur any = payload
		for _, step := range steps {
			switch key := step.(type) {
			case string:
				m, ok := cur.(map[string]any)
				if !ok {
					return "", false
				}
				cur, ok = m[key]
				if !ok {
					return "", false
				}
			case int:
				arr, ok := cur.([]any)
				if !ok || key < 0 || key >= len(arr) {
					return "", false
				}
				cur = arr[key]
			default:
				return "", false
			}
		}
		s, ok := cur.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}

// videoExtensions are the file suffixes the recursive scan recognizes as
// video artifacts.
var videoExtensions = []string{".mp4", ".webm", ".mov", ".mkv", ".avi"}

// VideoURL scans a completed video-job payload for an artifact URL.
// It first probes the common explicit shapes (video.url, url, output.url)
// and then falls back to a depth-first scan for any string value that
// looks like a hosted video file.
func VideoURL(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	explicit := []Strategy{
		Path("video", "url"),
		Path("output", "video", "url"),
		Path("output", "url"),
		Path("url"),
	}
	if url := FirstURL(payload, explicit); url != "" {
		return url
	}
	return scanValue(payload, 0)
}

// maxScanDepth bounds the recursive scan so pathological payloads cannot
// recurse unboundedly.
const maxScanDepth = 8

// scanValue walks maps and slices depth-first looking for a video URL.
// Map iteration order is not deterministic, so url-keyed fields are
// checked before the rest of the map to keep extraction stable.
func scanValue(v any, depth int) string {
	if depth > maxScanDepth {
		return ""
	}
	switch val := v.(type) {
	case string:
		if looksLikeVideoURL(val) {
			return val
		}
	case map[string]any:
		for _, key := range []string{"url", "video_url", "videoUrl"} {
			if s, ok := val[key].(string); ok && looksLikeMediaURL(s) {
				return s
			}
		}
		for _, nested := range val {
			if url := scanValue(nested, depth+1); url != "" {
				return url
			}
		}
	case []any:
		for _, item := range val {
			if url := scanValue(item, depth+1); url != "" {
				return url
			}
		}
	}
	return ""
}

// looksLikeVideoURL reports whether s is an http(s) URL ending in a known
// video extension (ignoring any query string).
func looksLikeVideoURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	path := s
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// looksLikeMediaURL reports whether s is a plausible hosted artifact URL.
// Used for url-keyed fields where the extension may be absent.
func looksLikeMediaURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
