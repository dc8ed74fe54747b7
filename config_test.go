package nuphase

import "testing"

func TestClampThreshold(t *testing.T) {
	if got := clampThreshold(maxThreshold + 100); got != maxThreshold {
		t.Errorf("clampThreshold(overflow) = %#x, want %#x", got, maxThreshold)
	}
	if got := clampThreshold(42); got != 42 {
		t.Errorf("clampThreshold(42) = %d, want 42", got)
	}
}

func TestReverseBits(t *testing.T) {
	cases := []struct{ in, want byte }{
		{0x00, 0x00},
		{0xFF, 0xFF},
		{0x01, 0x80},
		{0x80, 0x01},
		{0b00010011, 0b11001000},
	}
	for _, c := range cases {
		if got := reverseBits(c.in); got != c.want {
			t.Errorf("reverseBits(%#08b) = %#08b, want %#08b", c.in, got, c.want)
		}
	}
}

func TestTrigEnablesEncode(t *testing.T) {
	e := TrigEnables{RF: true, Calpulser: true}
	if got, want := e.encode(), byte(0b101); got != want {
		t.Errorf("encode() = %#03b, want %#03b", got, want)
	}
}

func TestSetTriggerMaskClearsHighBits(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	if err := d.SetTriggerMask(0xFFFFFFFF); err != nil {
		t.Fatalf("SetTriggerMask: %v", err)
	}
	if len(fake.Ops) != 1 {
		t.Fatalf("len(Ops) = %d, want 1", len(fake.Ops))
	}
	got := fake.Ops[0].Tx
	want := cmdWord{regTrigMask, 0xFF, 0xFF, 0xFF}
	if got != want {
		t.Errorf("Tx = %v, want %v (mask truncated to %d bits)", got, want, NumBeams)
	}
}

func TestTriggerMaskRoundTrip(t *testing.T) {
	d, _, _ := newTestDevice(t, false)
	if err := d.SetTriggerMask(0x123456); err != nil {
		t.Fatalf("SetTriggerMask: %v", err)
	}
	got, err := d.TriggerMask()
	if err != nil {
		t.Fatalf("TriggerMask: %v", err)
	}
	if got != 0x123456 {
		t.Errorf("TriggerMask() = %#x, want 0x123456", got)
	}
}

func TestSetThresholdsWritesAndVerifies(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	var want [NumBeams]uint32
	for i := range want {
		want[i] = uint32(1000 + i)
	}
	if err := d.SetThresholds(want); err != nil {
		t.Fatalf("SetThresholds: %v", err)
	}
	for beam, v := range want {
		got := fake.Register(byte(regThresholdsBase + beam))
		if got != v {
			t.Errorf("beam %d register = %#x, want %#x", beam, got, v)
		}
	}
}

func TestSetThresholdsClampsOverflow(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	var in [NumBeams]uint32
	in[0] = maxThreshold + 500
	if err := d.SetThresholds(in); err != nil {
		t.Fatalf("SetThresholds: %v", err)
	}
	if got := fake.Register(regThresholdsBase); got != maxThreshold {
		t.Errorf("beam 0 register = %#x, want %#x", got, maxThreshold)
	}
}

func TestSetTrigDelaysPacksThreeThreeTwo(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	delays := [NumChan]uint8{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80}
	if err := d.SetTrigDelays(delays); err != nil {
		t.Fatalf("SetTrigDelays: %v", err)
	}
	if len(fake.Ops) != 3 {
		t.Fatalf("len(Ops) = %d, want 3", len(fake.Ops))
	}
	want := []cmdWord{
		{regTrigDelay0, 0x10, 0x20, 0x30},
		{regTrigDelay0 + 1, 0x40, 0x50, 0x60},
		{regTrigDelay0 + 2, 0x70, 0x80, 0x00},
	}
	for i, w := range want {
		if fake.Ops[i].Tx != w {
			t.Errorf("Ops[%d] = %v, want %v", i, fake.Ops[i].Tx, w)
		}
	}
}
