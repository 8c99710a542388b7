package uploads

import "testing"

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"my photo (1).png", "my-photo--1-.png"},
		{"../../etc/passwd", "etc-passwd"},
		{"", "file"},
		{"///", "file"},
		{"Ünïcode.jpg", "n-code.jpg"},
	}
	for _, tc := range cases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
