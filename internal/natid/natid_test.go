package natid

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"N1234567890", true},
		{"ABCDEFGHIJK", true},
		{"12345678901", true},
		{"N123456789", false},   // too short
		{"N12345678901", false}, // too long
		{"N12345678-0", false},  // separator
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDerive(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"1234567890abcdef", "N1234567890"},
		{"ab-cd-ef", "Nabcdef0000"},
		{"auth0|short", "Nauth0short"},
		{"auth0|64abc1230f", "Nauth064abc"},
		{"", "N0000000000"},
		{"a_b:c-d", "Nabcd000000"},
	}
	for _, tc := range cases {
		got := Derive(tc.subject)
		if got != tc.want {
			t.Errorf("Derive(%q) = %q, want %q", tc.subject, got, tc.want)
		}
		if !Valid(got) {
			t.Errorf("Derive(%q) = %q is not a valid identifier", tc.subject, got)
		}
	}
}
