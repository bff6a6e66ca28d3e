package books

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		code string
		want string
		ok   bool
	}{
		{"gen", "Genesis", true},
		{"GEN", "Genesis", true},
		{"psa", "Psalms", true},
		{"rev", "Revelation", true},
		{"xyz", "", false},
	}

	for _, tt := range tests {
		got, ok := Name(tt.code)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Name(%q) = %q, %v; want %q, %v", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"gen", 1},
		{"mal", 39},
		{"mat", 41}, // numbering skips 40
		{"rev", 67},
	}

	for _, tt := range tests {
		got, ok := Number(tt.code)
		if !ok {
			t.Fatalf("Number(%q) not found", tt.code)
		}
		if got != tt.want {
			t.Errorf("Number(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}

	if _, ok := Number("zzz"); ok {
		t.Error("Number(zzz) should not be found")
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		code string
		num  string
		want string
	}{
		{"gen", "1", "01"},
		{"gen", "12", "12"},
		{"gen", "150", "150"},
		{"psa", "1", "001"},
		{"psa", "23", "023"},
		{"psa", "119", "119"},
	}

	for _, tt := range tests {
		if got := Pad(tt.code, tt.num); got != tt.want {
			t.Errorf("Pad(%q, %q) = %q, want %q", tt.code, tt.num, got, tt.want)
		}
	}
}

func TestOrdered(t *testing.T) {
	codes := Ordered()
	if len(codes) != 66 {
		t.Fatalf("Ordered() returned %d books, want 66", len(codes))
	}

	prev := 0
	for _, code := range codes {
		n, ok := Number(code)
		if !ok {
			t.Fatalf("ordered code %q has no number", code)
		}
		if n <= prev {
			t.Errorf("book numbers not increasing at %q: %d after %d", code, n, prev)
		}
		prev = n

		if _, ok := Name(code); !ok {
			t.Errorf("ordered code %q has no name", code)
		}
	}
}
