package answer

import (
	"regexp"
	"strconv"
	"testing"
)

func TestSanitizeCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{
			name: "out of range marker removed",
			text: "Bone loss occurs [1] and also [7].",
			n:    3,
			want: "Bone loss occurs [1] and also .",
		},
		{
			name: "all markers valid",
			text: "Findings [1] align with [2] and [3].",
			n:    3,
			want: "Findings [1] align with [2] and [3].",
		},
		{
			name: "zero is never valid",
			text: "See [0].",
			n:    3,
			want: "See .",
		},
		{
			name: "no evidence strips everything",
			text: "Claim [1] and claim [2].",
			n:    0,
			want: "Claim  and claim .",
		},
		{
			name: "non-numeric brackets untouched",
			text: "An array [a] and a range [1-2] stay.",
			n:    1,
			want: "An array [a] and a range [1-2] stay.",
		},
		{
			name: "boundary indexes",
			text: "[1][4][5]",
			n:    4,
			want: "[1][4]",
		},
		{
			name: "digits overflowing int are out of range",
			text: "Huge [99999999999999999999].",
			n:    4,
			want: "Huge .",
		},
		{
			name: "plain text untouched",
			text: "No citations here.",
			n:    2,
			want: "No citations here.",
		},
		{
			name: "empty text",
			text: "",
			n:    2,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeCitations(tt.text, tt.n); got != tt.want {
				t.Errorf("sanitizeCitations(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}

// Every marker surviving sanitization must point inside the evidence set.
func TestSanitizeCitations_SurvivorsAlwaysInRange(t *testing.T) {
	marker := regexp.MustCompile(`\[(\d+)\]`)
	texts := []string{
		"[1] [2] [3] [4] [5] [10] [100]",
		"mixed [2]text[9] with [0] noise",
		"[3][3][3]",
	}

	for _, text := range texts {
		for n := 0; n <= 5; n++ {
			out := sanitizeCitations(text, n)
			for _, m := range marker.FindAllStringSubmatch(out, -1) {
				k, err := strconv.Atoi(m[1])
				if err != nil || k < 1 || k > n {
					t.Errorf("n=%d: marker %q survived in %q", n, m[0], out)
				}
			}
		}
	}
}
