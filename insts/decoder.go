// Package insts provides RV32 instruction definitions and decoding.
package insts

// Op represents a decoded RV32 operation.
type Op uint16

// RV32 operations understood by the emulator.
const (
	OpUnknown Op = iota
	OpADDI
	OpADD
	OpSUB
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpBEQ
	OpBNE
	OpLW
	OpSW
	OpECALL
	OpEBREAK
	OpSRET
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW
)

var opNames = [...]string{
	OpUnknown:  "unknown",
	OpADDI:     "addi",
	OpADD:      "add",
	OpSUB:      "sub",
	OpMUL:      "mul",
	OpMULH:     "mulh",
	OpMULHSU:   "mulhsu",
	OpMULHU:    "mulhu",
	OpDIV:      "div",
	OpDIVU:     "divu",
	OpREM:      "rem",
	OpREMU:     "remu",
	OpBEQ:      "beq",
	OpBNE:      "bne",
	OpLW:       "lw",
	OpSW:       "sw",
	OpECALL:    "ecall",
	OpEBREAK:   "ebreak",
	OpSRET:     "sret",
	OpCSRRW:    "csrrw",
	OpCSRRS:    "csrrs",
	OpCSRRC:    "csrrc",
	OpLRW:      "lr.w",
	OpSCW:      "sc.w",
	OpAMOSWAPW: "amoswap.w",
	OpAMOADDW:  "amoadd.w",
	OpAMOXORW:  "amoxor.w",
	OpAMOANDW:  "amoand.w",
	OpAMOORW:   "amoor.w",
	OpAMOMINW:  "amomin.w",
	OpAMOMAXW:  "amomax.w",
	OpAMOMINUW: "amominu.w",
	OpAMOMAXUW: "amomaxu.w",
}

// String returns the assembler mnemonic of the operation.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// Opcode is the 7-bit major opcode in bits [6:0].
type Opcode uint8

// Major opcodes. No other value is defined.
const (
	OpcodeLoad   Opcode = 0x03
	OpcodeOpImm  Opcode = 0x13
	OpcodeStore  Opcode = 0x23
	OpcodeAtomic Opcode = 0x2F
	OpcodeOp     Opcode = 0x33
	OpcodeBranch Opcode = 0x63
	OpcodeSystem Opcode = 0x73
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register, also used by AMOs
	FormatI              // 12-bit immediate
	FormatS              // store, split 12-bit immediate
	FormatB              // branch, scattered 13-bit offset
)

// Funct7 values on the OP opcode.
const (
	Funct7Base   uint8 = 0x00
	Funct7Sub    uint8 = 0x20
	Funct7MulDiv uint8 = 0x01
)

// Funct5 values on the ATOMIC opcode (bits [31:27]).
const (
	Funct5AMOADD  uint8 = 0x00
	Funct5AMOSWAP uint8 = 0x01
	Funct5LR      uint8 = 0x02
	Funct5SC      uint8 = 0x03
	Funct5AMOXOR  uint8 = 0x04
	Funct5AMOOR   uint8 = 0x08
	Funct5AMOAND  uint8 = 0x0C
	Funct5AMOMIN  uint8 = 0x10
	Funct5AMOMAX  uint8 = 0x14
	Funct5AMOMINU uint8 = 0x18
	Funct5AMOMAXU uint8 = 0x1C
)

// SYSTEM funct12 values with funct3 == 0.
const (
	Funct12ECALL  uint16 = 0x000
	Funct12EBREAK uint16 = 0x001
	Funct12SRET   uint16 = 0x102
)

// Instruction represents a decoded RV32 instruction.
type Instruction struct {
	Op     Op     // Operation
	Opcode Opcode // Major opcode, bits [6:0]
	Format Format // Encoding format

	Rd     uint8 // Destination register, bits [11:7]
	Funct3 uint8 // bits [14:12]
	Rs1    uint8 // First source register, bits [19:15]
	Rs2    uint8 // Second source register, bits [24:20]
	Funct7 uint8 // bits [31:25]
	Funct5 uint8 // bits [31:27], ATOMIC only

	// Aq and Rl are the AMO ordering bits. They are decoded but carry no
	// meaning in the same-tick memory model.
	Aq bool
	Rl bool

	// Imm is the sign-extended I/S/B immediate. For branches it is the
	// byte offset.
	Imm int32

	// CSR is the 12-bit CSR number for CSR instructions.
	CSR uint16

	// Raw is the undecoded instruction word.
	Raw uint32
}

// Decoder decodes RV32 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RV32 instruction word. Words that do not match
// a known pattern decode to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{}
	d.DecodeInto(word, inst)
	return inst
}

// DecodeInto decodes word into inst, overwriting every field.
func (d *Decoder) DecodeInto(word uint32, inst *Instruction) {
	*inst = Instruction{
		Op:     OpUnknown,
		Opcode: Opcode(word & 0x7F),
		Rd:     uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Funct7: uint8((word >> 25) & 0x7F),
		Raw:    word,
	}

	switch inst.Opcode {
	case OpcodeOpImm:
		d.decodeOpImm(word, inst)
	case OpcodeOp:
		d.decodeOp(inst)
	case OpcodeBranch:
		d.decodeBranch(word, inst)
	case OpcodeLoad:
		d.decodeLoad(word, inst)
	case OpcodeStore:
		d.decodeStore(word, inst)
	case OpcodeSystem:
		d.decodeSystem(word, inst)
	case OpcodeAtomic:
		d.decodeAtomic(word, inst)
	}
}

// ImmI extracts the sign-extended I-type immediate, bits [31:20].
func ImmI(word uint32) int32 {
	return int32(word) >> 20
}

// ImmS extracts the sign-extended S-type immediate:
// imm[11:5] = bits [31:25], imm[4:0] = bits [11:7].
func ImmS(word uint32) int32 {
	hi := int32(word) >> 25 // sign carried by bit 31
	lo := int32((word >> 7) & 0x1F)
	return hi<<5 | lo
}

// ImmB extracts the sign-extended B-type byte offset:
// imm[12] = bit 31, imm[10:5] = bits [30:25], imm[4:1] = bits [11:8],
// imm[11] = bit 7, imm[0] = 0.
func ImmB(word uint32) int32 {
	imm := ((word >> 31) & 0x1) << 12
	imm |= ((word >> 7) & 0x1) << 11
	imm |= ((word >> 25) & 0x3F) << 5
	imm |= ((word >> 8) & 0xF) << 1
	// Sign-extend from bit 12.
	return int32(imm<<19) >> 19
}

func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = ImmI(word)

	if inst.Funct3 == 0 {
		inst.Op = OpADDI
	}
}

func (d *Decoder) decodeOp(inst *Instruction) {
	inst.Format = FormatR

	switch inst.Funct7 {
	case Funct7Base:
		if inst.Funct3 == 0 {
			inst.Op = OpADD
		}
	case Funct7Sub:
		if inst.Funct3 == 0 {
			inst.Op = OpSUB
		}
	case Funct7MulDiv:
		inst.Op = [8]Op{
			OpMUL, OpMULH, OpMULHSU, OpMULHU,
			OpDIV, OpDIVU, OpREM, OpREMU,
		}[inst.Funct3]
	}
}

func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatB
	inst.Imm = ImmB(word)

	switch inst.Funct3 {
	case 0:
		inst.Op = OpBEQ
	case 1:
		inst.Op = OpBNE
	}
}

func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = ImmI(word)

	if inst.Funct3 == 2 {
		inst.Op = OpLW
	}
}

func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	inst.Format = FormatS
	inst.Imm = ImmS(word)

	if inst.Funct3 == 2 {
		inst.Op = OpSW
	}
}

func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.CSR = uint16(word >> 20)

	switch inst.Funct3 {
	case 0:
		// Privileged instructions require rd and rs1 to be zero.
		if inst.Rd != 0 || inst.Rs1 != 0 {
			return
		}
		switch inst.CSR {
		case Funct12ECALL:
			inst.Op = OpECALL
		case Funct12EBREAK:
			inst.Op = OpEBREAK
		case Funct12SRET:
			inst.Op = OpSRET
		}
	case 1:
		inst.Op = OpCSRRW
	case 2:
		inst.Op = OpCSRRS
	case 3:
		inst.Op = OpCSRRC
	}
}

func (d *Decoder) decodeAtomic(word uint32, inst *Instruction) {
	inst.Format = FormatR
	inst.Funct5 = uint8((word >> 27) & 0x1F)
	inst.Aq = (word>>26)&0x1 == 1
	inst.Rl = (word>>25)&0x1 == 1

	// Only the word width is defined.
	if inst.Funct3 != 2 {
		return
	}

	switch inst.Funct5 {
	case Funct5LR:
		if inst.Rs2 == 0 {
			inst.Op = OpLRW
		}
	case Funct5SC:
		inst.Op = OpSCW
	case Funct5AMOSWAP:
		inst.Op = OpAMOSWAPW
	case Funct5AMOADD:
		inst.Op = OpAMOADDW
	case Funct5AMOXOR:
		inst.Op = OpAMOXORW
	case Funct5AMOAND:
		inst.Op = OpAMOANDW
	case Funct5AMOOR:
		inst.Op = OpAMOORW
	case Funct5AMOMIN:
		inst.Op = OpAMOMINW
	case Funct5AMOMAX:
		inst.Op = OpAMOMAXW
	case Funct5AMOMINU:
		inst.Op = OpAMOMINUW
	case Funct5AMOMAXU:
		inst.Op = OpAMOMAXUW
	}
}

// IsAtomic reports whether the operation belongs to the ATOMIC opcode.
func (op Op) IsAtomic() bool {
	return op >= OpLRW && op <= OpAMOMAXUW
}

// IsMulDiv reports whether the operation belongs to the M extension.
func (op Op) IsMulDiv() bool {
	return op >= OpMUL && op <= OpREMU
}
