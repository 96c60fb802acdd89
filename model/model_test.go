package model

import "testing"

func TestQoSBundleValidate(t *testing.T) {
	cases := []struct {
		name    string
		q       QoSBundle
		wantErr bool
	}{
		{
			name: "type2 valid",
			q:    QoSBundle{Type: TcontAssured, AssuredBw: 1000, MaxServiceInterval: 4},
		},
		{
			name:    "type2 missing assured",
			q:       QoSBundle{Type: TcontAssured, MaxServiceInterval: 4},
			wantErr: true,
		},
		{
			name:    "type2 nonzero fixed",
			q:       QoSBundle{Type: TcontAssured, FixedBw: 1, AssuredBw: 1000, MaxServiceInterval: 4},
			wantErr: true,
		},
		{
			name: "type4 valid",
			q:    QoSBundle{Type: TcontBestEffort, BestEffortBw: 5000, MaxServiceInterval: 4},
		},
		{
			name:    "type4 extra bandwidth",
			q:       QoSBundle{Type: TcontBestEffort, BestEffortBw: 5000, NonAssuredBw: 1, MaxServiceInterval: 4},
			wantErr: true,
		},
		{
			name:    "zero max service interval",
			q:       QoSBundle{Type: TcontFixed, FixedBw: 1, MaxServiceInterval: 0},
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.q.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() err=%v, wantErr=%v", err, c.wantErr)
			}
		})
	}
}

func TestStatusReportClamp(t *testing.T) {
	sr := NewStatusReport(1 << 40)
	if sr.BufferOccupancy != MaxBufferOccupancy {
		t.Fatalf("expected clamp to %d, got %d", MaxBufferOccupancy, sr.BufferOccupancy)
	}
	sr2 := NewStatusReport(42)
	if sr2.BufferOccupancy != 42 {
		t.Fatalf("expected 42, got %d", sr2.BufferOccupancy)
	}
}

func TestBwAllocHasStart(t *testing.T) {
	a := BwAlloc{StartTime: NoStartTime}
	if a.HasStart() {
		t.Fatalf("expected HasStart()==false for NoStartTime")
	}
	b := BwAlloc{StartTime: 12}
	if !b.HasStart() {
		t.Fatalf("expected HasStart()==true for StartTime=12")
	}
}

func TestBWmapTotalGrantSize(t *testing.T) {
	m := BWmap{Allocs: []BwAlloc{{GrantSize: 10}, {GrantSize: 20}}}
	if got := m.TotalGrantSize(); got != 30 {
		t.Fatalf("TotalGrantSize() = %d, want 30", got)
	}
}
