package units

import "testing"

func TestBytesToBaseUnits(t *testing.T) {
	cases := []struct {
		name    string
		n       Bytes
		unit    GrantUnit
		wantQ   BaseUnits
		wantRem Bytes
	}{
		{"xgpon exact", 16, GrantUnitXGPON, 4, 0},
		{"xgpon remainder", 18, GrantUnitXGPON, 4, 2},
		{"xgspon exact", 32, GrantUnitXGSPON, 2, 0},
		{"xgspon remainder", 40, GrantUnitXGSPON, 2, 8},
		{"zero", 0, GrantUnitXGSPON, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q, r := BytesToBaseUnits(c.n, c.unit)
			if q != c.wantQ || r != c.wantRem {
				t.Fatalf("BytesToBaseUnits(%d, %d) = (%d, %d), want (%d, %d)",
					c.n, c.unit, q, r, c.wantQ, c.wantRem)
			}
		})
	}
}

func TestCeilBytesToBaseUnits(t *testing.T) {
	if got := CeilBytesToBaseUnits(17, GrantUnitXGPON); got != 5 {
		t.Fatalf("CeilBytesToBaseUnits(17, 4) = %d, want 5", got)
	}
	if got := CeilBytesToBaseUnits(16, GrantUnitXGPON); got != 4 {
		t.Fatalf("CeilBytesToBaseUnits(16, 4) = %d, want 4", got)
	}
}

func TestRoundTrip(t *testing.T) {
	const unit = GrantUnitXGSPON
	bu := BaseUnits(37)
	b := bu.ToBytes(unit)
	if b != 37*16 {
		t.Fatalf("ToBytes = %d, want %d", b, 37*16)
	}
	q, r := BytesToBaseUnits(b, unit)
	if q != bu || r != 0 {
		t.Fatalf("round trip = (%d, %d), want (%d, 0)", q, r, bu)
	}
}
