package nuphase

import "sync"

// cmdWord is one precomputed 4-byte SPI command word:
// [opcode, payload_hi, payload_mid, payload_lo].
type cmdWord [4]byte

// commandTables holds every precomputed command word for one board Family.
// Built once per Family on first use and never mutated afterward, so a
// *commandTables can be shared across every Device of that family without
// locking (spec §4.1, design note in spec §9: "global mutable state... model
// as a lazily initialized process-wide immutable table").
type commandTables struct {
	family  Family
	mode    []cmdWord // indexed by Mode
	channel []cmdWord // indexed by channel 0..NumChan-1
	buffer  []cmdWord // indexed by buffer 0..NumBuffer-1
	chunk   []cmdWord // indexed by chunk 0..NumChunk-1
	ramAddr []cmdWord // indexed by RAM address 0..maxRAMAddr-1
	clear   []cmdWord // indexed by clear mask 0..1<<NumBuffer-1
	scaler  []cmdWord // indexed by scaler-pick index
	selectReg map[uint8]cmdWord // register address -> SET_READ_REG command
}

// maxRAMAddr is the largest RAM address the precomputed table covers: one
// entry per Word*NumChunk-sample slice of the largest supported buffer.
const maxRAMAddr = MaxWaveformLength / (Word * NumChunk)

func encodeChannel(f Family, i int) byte {
	if f == BN {
		return 1 << uint(i)
	}
	return byte(i)
}

func encodeChunkOpcode(f Family, i int) byte {
	if f == BN {
		return regChunkBase + byte(i)
	}
	return regChunkBase
}

func encodeChunkPayload(f Family, i int) byte {
	if f == BN {
		return 0
	}
	return byte(i)
}

func buildCommandTables(f Family) *commandTables {
	t := &commandTables{family: f}

	t.mode = make([]cmdWord, 2)
	for m := range t.mode {
		t.mode[m] = cmdWord{regMode, 0, 0, byte(m)}
	}

	t.channel = make([]cmdWord, NumChan)
	for i := range t.channel {
		t.channel[i] = cmdWord{regChanSel, 0, 0, encodeChannel(f, i)}
	}

	t.buffer = make([]cmdWord, NumBuffer)
	for i := range t.buffer {
		t.buffer[i] = cmdWord{regBufSel, 0, 0, byte(i)}
	}

	t.chunk = make([]cmdWord, NumChunk)
	for i := range t.chunk {
		t.chunk[i] = cmdWord{encodeChunkOpcode(f, i), 0, 0, encodeChunkPayload(f, i)}
	}

	t.ramAddr = make([]cmdWord, maxRAMAddr)
	for i := range t.ramAddr {
		t.ramAddr[i] = cmdWord{regRAMAddr, 0, 0, byte(i)}
	}

	t.clear = make([]cmdWord, 1<<NumBuffer)
	for i := range t.clear {
		t.clear[i] = cmdWord{regClear, 0, 0, byte(i)}
	}

	numScalerPicks := NumScalers + NumScalers*NumBeams
	t.scaler = make([]cmdWord, numScalerPicks)
	for i := range t.scaler {
		t.scaler[i] = cmdWord{regPickScaler, 0, 0, byte(i)}
	}

	t.selectReg = make(map[uint8]cmdWord, len(readableRegisters))
	for _, addr := range readableRegisters {
		t.selectReg[addr] = cmdWord{regSetReadReg, 0, 0, addr}
	}

	return t
}

// readableRegisters lists every register address the event reader, scaler
// reader, and configuration getters may select via regSetReadReg.
var readableRegisters = []uint8{
	regStatus, regEventCtrLo, regEventCtrHi, regTrigCtrLo, regTrigCtrHi,
	regTrigTimeLo, regTrigTimeHi, regDeadtime, regTrigInfo, regChannelMask,
	regChanReadMask, regUserBeamMask, regLastBeam, regBeamPower,
	regPPSCounter, regHDDynMask, regVetoDeadtime, regScalerRead,
	regThresholdsBase, regTrigMask, regTrigEnables, regTrigPol,
	regDynMaskEnable, regDynMaskHoldoff, regVetoOptions, regVetoCutA,
	regVetoCutB, regTrigDelay0, regTrigOutput, regExtInputFlags,
	regExtInputDelay, regAttenBase,
}

var (
	tablesOnce [2]sync.Once
	tables     [2]*commandTables
)

// cmdTablesFor returns the immutable command tables for f, building them on
// first use.
func cmdTablesFor(f Family) *commandTables {
	tablesOnce[f].Do(func() {
		tables[f] = buildCommandTables(f)
	})
	return tables[f]
}
