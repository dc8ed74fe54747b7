package nuphase

import "periph.io/x/conn/v3/physic"

// Family distinguishes the two hardware generations this driver supports.
// They share a register map and command protocol but differ in their
// trigger clock rate and in how the channel and RAM-chunk opcodes are
// encoded on the wire.
type Family uint8

const (
	// NP is the first-generation board.
	NP Family = iota
	// BN is the second-generation board.
	BN
)

func (f Family) String() string {
	switch f {
	case NP:
		return "NP"
	case BN:
		return "BN"
	default:
		return "Family(?)"
	}
}

// BoardClockHz is the frequency of the 48-bit trigger-time counter for f.
//
// BN runs its trigger clock at 500MHz/16; NP runs at 7.5MHz.
func (f Family) BoardClockHz() physic.Frequency {
	if f == BN {
		return 500 * physic.MegaHertz / 16
	}
	return 7500 * physic.KiloHertz
}

// SPIClock is the maximum rated SPI clock for f, used at Connect time.
func (f Family) SPIClock() physic.Frequency {
	if f == BN {
		return 20 * physic.MegaHertz
	}
	return 10 * physic.MegaHertz
}

// Fixed geometry of the board family. These are not expected to vary
// per-device; a board that needs different values is a different Family.
const (
	// NumBuffer is the number of hardware event buffers, indexed 0..3.
	NumBuffer = 4
	// NumChan is the number of ADC channels per board.
	NumChan = 8
	// NumBeams is the number of phased-array beam directions the trigger
	// evaluates, one bit per beam in the 24-bit trigger mask.
	NumBeams = 24
	// NumScalers is the number of global scaler categories in a Scaler
	// snapshot.
	NumScalers = 4
	// Word is the SPI transfer word size in bytes, and also the number of
	// 8-bit samples packed into one waveform chunk.
	Word = 4
	// NumChunk is the number of 4-byte chunks that make up one RAM word.
	NumChunk = 4
	// MaxWaveformLength is the largest buffer_length (in samples) this
	// driver will allocate room for.
	MaxWaveformLength = 2048
	// MinGoodMaxV is the minimum acceptable calpulser peak sample value
	// during ADC-delay calibration (spec §4.9).
	MinGoodMaxV = 20
	// MaxMisery bounds the number of calibration retries before giving up.
	MaxMisery = 100
)

// Register addresses. These are the single-byte opcodes placed in byte 0 of
// every 4-byte command word: [opcode, payload_hi, payload_mid, payload_lo].
const (
	regStatus       = 0x01 // bits 0-3 ready mask, bits 4-5 hardware next-to-read
	regEventCtrLo   = 0x02
	regEventCtrHi   = 0x03
	regTrigCtrLo    = 0x04
	regTrigCtrHi    = 0x05
	regTrigTimeLo   = 0x06
	regTrigTimeHi   = 0x07
	regDeadtime     = 0x08
	regTrigInfo     = 0x09 // bits 22-23 buffer, bit 21 calpulser, bits 15-16 trig type, bits 0-3 pol
	regChannelMask  = 0x0A
	regChanReadMask = 0x0B
	regUserBeamMask = 0x0C
	regLastBeam     = 0x0D
	regBeamPower    = 0x0E
	regPPSCounter   = 0x0F
	regHDDynMask    = 0x10
	regVetoDeadtime = 0x11

	regMode       = 0x20
	regBufSel     = 0x21
	regChanSel    = 0x22
	regRAMAddr    = 0x23
	regChunkBase  = 0x24 // BN: opcode = regChunkBase+i ; NP: fixed, payload=i
	regClear      = 0x25
	regResetAll   = 0x26
	regResetCtr   = 0x27
	regSync       = 0x28
	regUpdScalers = 0x29
	regPickScaler = 0x2A
	regScalerRead = 0x2B
	regAdcClkRst  = 0x2C
	regTimestamp  = 0x2D // free-running mode select, written before counter reset
	regSoftTrig   = 0x2E // fires a software trigger; used by ADC-delay calibration

	regThresholdsBase = 0x40 // THRESHOLDS + beam_index
	regTrigMask       = 0x60
	regTrigEnables    = 0x61
	regTrigPol        = 0x62
	regDynMaskEnable  = 0x63
	regDynMaskHoldoff = 0x64
	regVetoOptions    = 0x65
	regVetoCutA       = 0x66
	regVetoCutB       = 0x67
	regTrigDelay0     = 0x68 // 3 registers: regTrigDelay0..regTrigDelay0+2
	regTrigOutput     = 0x6B
	regExtInputFlags  = 0x6C
	regExtInputDelay  = 0x6D
	regAttenBase      = 0x70 // 3 registers: regAttenBase..regAttenBase+2
	regAdcDelaysBase  = 0x73 // one register per ADC pair

	regSetReadReg = 0xFE // [SET_READ_REG, 0, 0, target]
	regRead       = 0xFF // prompts device to echo addressed register
)

// Mode is the readout mode stored in the board state cache and written to
// regMode.
type Mode uint8

const (
	ModeWaveform Mode = iota
	ModeRegisterTest
)

// TrigType is the decoded trigger source, packed into bits 15-16 of
// trig-info.
type TrigType uint8

const (
	TrigSoftware TrigType = iota
	TrigRF
	TrigExternal
	TrigCalpulser
)

func (t TrigType) String() string {
	switch t {
	case TrigSoftware:
		return "software"
	case TrigRF:
		return "rf"
	case TrigExternal:
		return "external"
	case TrigCalpulser:
		return "calpulser"
	default:
		return "unknown"
	}
}

// TrigPol is the trigger polarization selector (spec §4.8).
type TrigPol uint8

const (
	PolH TrigPol = iota
	PolV
	PolBoth
)

// ClearMask selects which buffers a clear command targets; bit i clears
// buffer i.
type ClearMask uint8
