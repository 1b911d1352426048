package objectstore

import "testing"

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"front.JPG":               "listings/abc.jpg",
		"dir/../shop.png":         "listings/abc.png",
		"noext":                   "listings/abc",
		"weird.verylongextension": "listings/abc",
	}
	for in, want := range cases {
		if got := objectKey(in, "abc"); got != want {
			t.Errorf("objectKey(%q) = %q want %q", in, got, want)
		}
	}
}

func TestObjectURL(t *testing.T) {
	got := objectURL("http://localhost:9000/", "images", "listings/abc.jpg")
	if got != "http://localhost:9000/images/listings/abc.jpg" {
		t.Fatalf("got %q", got)
	}
}
