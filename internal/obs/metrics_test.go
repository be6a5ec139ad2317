package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                       "/",
		"/metrics":                               "/metrics",
		"/v1/search":                             "/v1/search",
		"/v1/search?limit=10":                    "/v1/search",
		"/v1/data-items":                         "/v1/data-items",
		"/v1/data-items/abc":                     "/v1/data-items/:id",
		"/v1/data-items/abc/extra":               "/v1/data-items/abc/extra",
		"/v1/admin/credentials":                  "/v1/admin/credentials",
		"/v1/admin/credentials/abc":              "/v1/admin/credentials/:id",
		"/v1/admin/credentials/abc/revoke":       "/v1/admin/credentials/:id/revoke",
		"/v1/admin/credentials/abc/revoke/extra": "/v1/admin/credentials/abc/revoke/extra",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
