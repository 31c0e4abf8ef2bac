package notion

import "testing"

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"AbCdEf", "abcdef"},
		{"123e4567-e89b-12d3-a456-426614174000", "123e4567e89b12d3a456426614174000"},
		{"  123E4567-E89B-12D3-A456-426614174000  ", "123e4567e89b12d3a456426614174000"},
		{"already-normal", "alreadynormal"},
	}
	for _, c := range cases {
		if got := NormalizeID(c.in); got != c.want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIDIsIdempotent(t *testing.T) {
	once := NormalizeID("123e4567-E89B-12d3-A456-426614174000")
	if twice := NormalizeID(once); twice != once {
		t.Fatalf("second pass changed id: %q -> %q", once, twice)
	}
}
