package nuphase

import "testing"

func TestCmdTablesForIsStable(t *testing.T) {
	a := cmdTablesFor(NP)
	b := cmdTablesFor(NP)
	if a != b {
		t.Fatalf("cmdTablesFor(NP) returned different instances across calls")
	}
	bn := cmdTablesFor(BN)
	if a == bn {
		t.Fatalf("cmdTablesFor(NP) and cmdTablesFor(BN) returned the same instance")
	}
}

func TestEncodeChannelPerFamily(t *testing.T) {
	for i := 0; i < NumChan; i++ {
		if got, want := encodeChannel(BN, i), byte(1<<uint(i)); got != want {
			t.Errorf("encodeChannel(BN, %d) = %#x, want %#x", i, got, want)
		}
		if got, want := encodeChannel(NP, i), byte(i); got != want {
			t.Errorf("encodeChannel(NP, %d) = %#x, want %#x", i, got, want)
		}
	}
}

func TestEncodeChunkVariesByFamily(t *testing.T) {
	for i := 0; i < NumChunk; i++ {
		if op, payload := encodeChunkOpcode(BN, i), encodeChunkPayload(BN, i); op != regChunkBase+byte(i) || payload != 0 {
			t.Errorf("BN chunk %d: opcode=%#x payload=%#x, want opcode=%#x payload=0", i, op, payload, regChunkBase+byte(i))
		}
		if op, payload := encodeChunkOpcode(NP, i), encodeChunkPayload(NP, i); op != regChunkBase || payload != byte(i) {
			t.Errorf("NP chunk %d: opcode=%#x payload=%#x, want opcode=%#x payload=%#x", i, op, payload, regChunkBase, i)
		}
	}
}

func TestBuildCommandTablesSizes(t *testing.T) {
	tb := buildCommandTables(BN)
	if len(tb.mode) != 2 {
		t.Errorf("len(mode) = %d, want 2", len(tb.mode))
	}
	if len(tb.channel) != NumChan {
		t.Errorf("len(channel) = %d, want %d", len(tb.channel), NumChan)
	}
	if len(tb.buffer) != NumBuffer {
		t.Errorf("len(buffer) = %d, want %d", len(tb.buffer), NumBuffer)
	}
	if len(tb.clear) != 1<<NumBuffer {
		t.Errorf("len(clear) = %d, want %d", len(tb.clear), 1<<NumBuffer)
	}
	if len(tb.scaler) != NumScalers+NumScalers*NumBeams {
		t.Errorf("len(scaler) = %d, want %d", len(tb.scaler), NumScalers+NumScalers*NumBeams)
	}
	for _, addr := range readableRegisters {
		if _, ok := tb.selectReg[addr]; !ok {
			t.Errorf("selectReg missing entry for register %#x", addr)
		}
	}
}
