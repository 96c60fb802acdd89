package ident

import "testing"

func TestOnuIdValidate(t *testing.T) {
	cases := []struct {
		id      OnuId
		wantErr bool
	}{
		{0, false},
		{1020, false},
		{1021, true},
		{1022, true},
		{1023, true},
		{2000, true},
	}
	for _, c := range cases {
		err := c.id.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("OnuId(%d).Validate() err=%v, wantErr=%v", c.id, err, c.wantErr)
		}
	}
}

func TestAllocIdValidate(t *testing.T) {
	if err := AllocId(16383).Validate(); err != nil {
		t.Errorf("AllocId(16383) should be valid: %v", err)
	}
	if err := AllocId(16384).Validate(); err == nil {
		t.Errorf("AllocId(16384) should be invalid")
	}
}
