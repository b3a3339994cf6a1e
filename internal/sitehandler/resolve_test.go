package sitehandler

import "testing"

func TestResolvePath(t *testing.T) {
	fsys := testFS()
	tests := []struct {
		in       string
		file     string
		redirect string
		ok       bool
	}{
		{"/b7f3/index.html", "b7f3/index.html", "", true},
		{"/b7f3/", "b7f3/index.html", "", true},
		{"/b7f3", "", "/b7f3/", true},
		{"b7f3/js/app.js", "b7f3/js/app.js", "", true},
		{"/b7f3//js/app.js", "b7f3/js/app.js", "", true},
		{"/b7f3/js/", "", "", false},
		{"/b7f3/js", "", "", false},
		{"/", "", "", false},
		{"/b7f3/../x", "", "", false},
		{"/b7f3/./index.html", "", "", false},
		{"/b7f3\\index.html", "", "", false},
		{"/b7f3/index.html\x00", "", "", false},
	}
	for _, tt := range tests {
		file, redirect, ok := resolvePath(tt.in, fsys, "index.html")
		if file != tt.file || redirect != tt.redirect || ok != tt.ok {
			t.Errorf("resolvePath(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, file, redirect, ok, tt.file, tt.redirect, tt.ok)
		}
	}
}

func TestCacheControlForFile(t *testing.T) {
	o := &Options{}
	o.setDefaults()
	tests := map[string]string{
		"b1/index.html":      "no-cache",
		"b1/README":          "no-cache",
		"b1/app.JS":          "public, max-age=3600",
		"b1/video.mp4":       "public, max-age=3600",
		"b1/imsmanifest.xml": "public, max-age=3600",
	}
	for name, want := range tests {
		if got := cacheControlForFile(name, o); got != want {
			t.Errorf("%s: %q, want %q", name, got, want)
		}
	}
}
