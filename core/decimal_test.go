package core

import "testing"

func TestDecimalFromString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.5", "12.500000000000000000"},
		{"-3", "-3.000000000000000000"},
		{"0", "0.000000000000000000"},
		{"0.000000000000000001", "0.000000000000000001"},
	}
	for _, c := range cases {
		d, err := DecimalFromString(c.in)
		if err != nil {
			t.Fatalf("DecimalFromString(%q): %v", c.in, err)
		}
		if got := d.String(); got != c.want {
			t.Errorf("DecimalFromString(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecimalFromStringRejectsExcessPrecision(t *testing.T) {
	if _, err := DecimalFromString("1.1234567890123456789"); err == nil {
		t.Fatalf("expected error for 19 fractional digits")
	}
}

func TestRoundToDivisibilityTruncates(t *testing.T) {
	d, _ := DecimalFromString("1.999")
	got := d.RoundToDivisibility(0)
	want, _ := DecimalFromString("1")
	if !got.Equal(want) {
		t.Errorf("RoundToDivisibility(0) = %s, want %s", got, want)
	}
}

func TestRoundHalfToEvenTiesToEven(t *testing.T) {
	half, _ := DecimalFromString("2.5")
	if got := half.RoundHalfToEven(0); !got.Equal(DecimalFromInt64(2)) {
		t.Errorf("RoundHalfToEven(2.5) = %s, want 2", got)
	}
	threeHalf, _ := DecimalFromString("3.5")
	if got := threeHalf.RoundHalfToEven(0); !got.Equal(DecimalFromInt64(4)) {
		t.Errorf("RoundHalfToEven(3.5) = %s, want 4", got)
	}
}

func TestDecimalMulTruncates(t *testing.T) {
	a, _ := DecimalFromString("0.1")
	b, _ := DecimalFromString("0.1")
	got := a.Mul(b)
	want, _ := DecimalFromString("0.01")
	if !got.Equal(want) {
		t.Errorf("0.1 * 0.1 = %s, want %s", got, want)
	}
}
