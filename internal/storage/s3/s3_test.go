package s3

import "testing"

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"photos/photo/a.jpg":       "photos/photo/a.jpg",
		"/photos/photo/a.jpg":      "photos/photo/a.jpg",
		"photos\\thumbnail\\b.png": "photos/thumbnail/b.png",
		"../../etc/passwd":         "etc/passwd",
		"photos/./photo//c.jpg":    "photos/photo/c.jpg",
	}
	for in, want := range cases {
		if got := objectKey(in); got != want {
			t.Fatalf("objectKey(%q) = %q, want %q", in, got, want)
		}
	}
}
