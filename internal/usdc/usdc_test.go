package usdc

import (
	"errors"
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToDisplay(t *testing.T) {
	got := ToDisplay(12_500000)
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Expected 12.5, got %s", got)
	}
}

func TestToInteger_FloatArtifacts(t *testing.T) {
	cases := []struct {
		in   float64
		want Amount
	}{
		{0, 0},
		{0.1, 100000},
		{0.29, 290000},
		{1.005, 1005000},
		{19.99, 19990000},
		{100, 100 * Unit},
		{0.000001, 1},
		{1234567.891011, 1234567891011},
	}
	for _, tc := range cases {
		got, err := ToInteger(tc.in)
		if err != nil {
			t.Fatalf("ToInteger(%v) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ToInteger(%v): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestToInteger_Rejects(t *testing.T) {
	for _, v := range []float64{-0.01, math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
		if _, err := ToInteger(v); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ToInteger(%v): expected ErrInvalidAmount, got %v", v, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	samples := []Amount{0, 1, 9, 10, 999999, Unit, 150 * Unit, 1_000_000 * Unit}
	for i := 0; i < 5000; i++ {
		samples = append(samples, Amount(r.Int63n(1_000_000_000_000_000)))
	}
	for _, n := range samples {
		got, err := ToInteger(ToDisplay(n).InexactFloat64())
		if err != nil {
			t.Fatalf("round trip %d: %v", n, err)
		}
		if got != n {
			t.Fatalf("round trip: expected %d, got %d", n, got)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(" 35.25 ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != 35_250000 {
		t.Errorf("Expected 35250000, got %d", got)
	}

	for _, s := range []string{"", "abc", "-1", "0.0000001"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Parse(%q): expected ErrInvalidAmount, got %v", s, err)
		}
	}
}

func TestFromBig(t *testing.T) {
	got, err := FromBig(big.NewInt(5_000000))
	if err != nil || got != 5*Unit {
		t.Errorf("Expected 5 USDC, got %d (%v)", got, err)
	}
	if got, err := FromBig(nil); err != nil || got != 0 {
		t.Errorf("Expected nil to be zero, got %d (%v)", got, err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	if _, err := FromBig(huge); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected overflow error, got %v", err)
	}
	if _, err := FromBig(big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected negative error, got %v", err)
	}
}

func TestString(t *testing.T) {
	cases := map[Amount]string{
		0:          "0.00",
		12 * Unit:  "12.00",
		12_500000:  "12.50",
		1:          "0.000001",
		1_234567:   "1.234567",
		-1_500000:  "-1.50",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("Amount(%d).String(): expected %q, got %q", in, want, got)
		}
	}
}
