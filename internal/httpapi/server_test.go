package httpapi

import "testing"

func TestIsValidHTTPURL(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"http://EXAMPLE.com", true},
		{"https://api.example.com/health/capabilities", true},
		{"ftp://x", false},
		{"", false},
		{"https://", false},
		{"example.com", false},
	}
	for _, c := range cases {
		if got := isValidHTTPURL(c.in); got != c.want {
			t.Fatalf("isValidHTTPURL(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeHTTPURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://EXAMPLE.com/", "https://example.com"},
		{"HTTP://example.com:80", "http://example.com"},
		{"https://example.com:443/", "https://example.com"},
		{"https://example.com/p/", "https://example.com/p/"},
		{"https://example.com:8443/x", "https://example.com:8443/x"},
		{"http://[::1]:80/", "http://[::1]"},
		{"  https://example.com/q?a=1 ", "https://example.com/q?a=1"},
	}
	for _, c := range cases {
		if got := normalizeHTTPURL(c.in); got != c.want {
			t.Fatalf("normalizeHTTPURL(%q)=%q want %q", c.in, got, c.want)
		}
	}
}
