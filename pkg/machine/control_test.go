package machine

import (
	"encoding/binary"
	"testing"

	"github.com/miltonvm/milton/pkg/isa"
)

func run(t *testing.T, cu *ControlUnit) {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		halted, err := cu.Tick()
		if err != nil {
			t.Fatalf("tick: %v", err)
		}
		if halted {
			return
		}
	}
	t.Fatal("machine did not halt")
}

func TestSignSpadd(t *testing.T) {
	cu := New(nil, nil)
	cu.Mem[0xFFFB] = 0
	cu.Mem[0xFFF7] = 1
	cu.IMem[0] = 0x0080F000 // sign 0xF000
	cu.IMem[1] = 0x0E400000 // save ~ 0
	cu.IMem[2] = 0x0C80FFFC // spadd -4
	cu.IMem[3] = 0x00807FFF // sign 0x7FFF
	cu.IMem[4] = 0x0E400000 // save ~ 0
	cu.IMem[5] = 0x11000000 // halt
	run(t, cu)

	if cu.Mem[0xFFFB] != 1 {
		t.Errorf("mem[0xFFFB] = %d, want 1", cu.Mem[0xFFFB])
	}
	if cu.Mem[0xFFF7] != 0 {
		t.Errorf("mem[0xFFF7] = %d, want 0", cu.Mem[0xFFF7])
	}
}

func TestAluSequence(t *testing.T) {
	var v uint32
	v += 5
	v += 0x38276
	v += v
	v &= 0x0F0F
	v |= 0xA0A0
	v -= 0x276
	v *= 3
	v /= 2
	v %= 11

	cu := New(nil, nil)
	binary.LittleEndian.PutUint32(cu.Mem[12:], 0x38276)
	binary.LittleEndian.PutUint32(cu.Mem[16:], 0x276)
	cu.IMem[0] = 0x03800005 // add 5
	cu.IMem[1] = 0x0300000C // add # 12
	cu.IMem[2] = 0x03F01234 // add acc
	cu.IMem[3] = 0x01800F0F // and 0x0F0F
	cu.IMem[4] = 0x0280A0A0 // or 0xA0A0
	cu.IMem[5] = 0x04000010 // sub # 16
	cu.IMem[6] = 0x05800003 // mul 3
	cu.IMem[7] = 0x06800002 // div 2
	cu.IMem[8] = 0x0780000B // rem 11
	cu.IMem[9] = 0x11000000 // halt
	run(t, cu)

	if cu.Acc != v {
		t.Errorf("acc = %d, want %d", cu.Acc, v)
	}
}

func TestJumps(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = 0x09000009  // jifz +9
	cu.IMem[9] = 0x03800005  // add 5
	cu.IMem[10] = 0x09000005 // jifz +5 (acc nonzero, falls through)
	cu.IMem[11] = 0x03800004 // add 4
	cu.IMem[12] = 0x08000004 // jump +4
	cu.IMem[15] = 0x11000000 // halt
	cu.IMem[16] = 0x0800FFFF // jump -1
	run(t, cu)

	if cu.Acc != 9 {
		t.Errorf("acc = %d, want 9", cu.Acc)
	}
}

func TestCallRet(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = 0x03800005 // add 5
	cu.IMem[1] = 0x0E400000 // save ~ 0
	cu.IMem[2] = 0x0A000020 // call 32
	cu.IMem[3] = 0x0A000040 // call 64
	cu.IMem[4] = 0x0D400000 // load ~ 0
	cu.IMem[5] = 0x11000000 // halt

	cu.IMem[32] = 0x0D400004 // load ~ 4
	cu.IMem[33] = 0x03800006 // add 6
	cu.IMem[34] = 0x0E400004 // save ~ 4
	cu.IMem[35] = 0x0B000000 // ret

	cu.IMem[64] = 0x0D400004 // load ~ 4
	cu.IMem[65] = 0x03800007 // add 7
	cu.IMem[66] = 0x0E400004 // save ~ 4
	cu.IMem[67] = 0x0B000000 // ret

	run(t, cu)

	if cu.Acc != 18 {
		t.Errorf("acc = %d, want 18", cu.Acc)
	}
	if cu.SP != spInit {
		t.Errorf("sp = %#x, want %#x", cu.SP, uint16(spInit))
	}
	if cu.IP != 5 {
		t.Errorf("ip = %d, want 5", cu.IP)
	}
}

func TestRelativeLoadStore(t *testing.T) {
	cu := New(nil, nil)
	cu.Mem[12] = 16
	binary.LittleEndian.PutUint32(cu.Mem[16:], 0x12345678)
	cu.IMem[0] = 0x0F00000C // ldrel 12
	cu.IMem[1] = 0x038000AA // add 0xAA
	cu.IMem[2] = 0x1000000C // svrel 12
	cu.IMem[3] = 0x11000000 // halt
	run(t, cu)

	got := binary.LittleEndian.Uint32(cu.Mem[16:])
	if got != 0x12345678+0xAA {
		t.Errorf("mem[16] = %#x, want %#x", got, uint32(0x12345678+0xAA))
	}
}

func TestInputOutput(t *testing.T) {
	cu := New(nil, nil)
	cu.Input = []byte("Hello")
	for i := 0; i < 5; i++ {
		cu.IMem[2*i] = 0x0D000000   // load # 0
		cu.IMem[2*i+1] = 0x0E000004 // save # 4
	}
	cu.IMem[10] = 0x11000000 // halt
	run(t, cu)

	if string(cu.Output) != "Hello" {
		t.Errorf("output = %q, want %q", cu.Output, "Hello")
	}
}

// Each ALU opcode applied through the immediate path advances ip by one
// and leaves the expected function of (acc, operand) in the accumulator.
func TestAluOpcodesImmediate(t *testing.T) {
	tests := []struct {
		op   isa.Opcode
		acc  uint32
		arg  uint16
		want uint32
	}{
		{isa.Sign, 7, 0xF000, 1}, // sign-extended operand is negative
		{isa.Sign, 7, 0x7FFF, 0},
		{isa.And, 0xFFFFFFFF, 0xF00F, 0x0000F00F}, // zero-extended
		{isa.Or, 0x1000, 0x8001, 0x1000 | 0x8001},
		{isa.Add, 10, 0xFFFF, 9}, // adds -1
		{isa.Sub, 10, 3, 7},
		{isa.Mul, 6, 7, 42},
		{isa.Div, 42, 5, 8},
		{isa.Rem, 42, 5, 2},
	}
	for _, tc := range tests {
		cu := New(nil, nil)
		cu.Acc = tc.acc
		cu.IMem[0] = uint32(isa.Encode(tc.op, isa.Imm, tc.arg))
		cu.IMem[1] = uint32(isa.Encode(isa.Halt, isa.Direct, 0))
		run(t, cu)
		if cu.Acc != tc.want {
			t.Errorf("%s acc=%#x arg=%#x: acc = %#x, want %#x",
				isa.Catalog[tc.op].Mnemonic, tc.acc, tc.arg, cu.Acc, tc.want)
		}
		if cu.IP != 1 {
			t.Errorf("%s: ip = %d, want 1", isa.Catalog[tc.op].Mnemonic, cu.IP)
		}
	}
}

func TestJifzNotTakenOnNonzero(t *testing.T) {
	cu := New(nil, nil)
	cu.Acc = 1
	cu.IMem[0] = uint32(isa.Encode(isa.Jifz, isa.Direct, 5))
	cu.IMem[1] = uint32(isa.Encode(isa.Halt, isa.Direct, 0))
	cu.IMem[5] = uint32(isa.Encode(isa.Add, isa.Imm, 100))
	cu.IMem[6] = uint32(isa.Encode(isa.Halt, isa.Direct, 0))
	run(t, cu)
	if cu.IP != 1 {
		t.Errorf("ip = %d, want 1", cu.IP)
	}
}

func TestUnknownOpcodeFaults(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = 0x12000000
	if _, err := cu.Tick(); err == nil {
		t.Fatal("expected a fault for an unknown opcode")
	}
}

func TestSaveImmediateFaults(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = uint32(isa.Encode(isa.Save, isa.Imm, 12))
	if _, err := cu.Tick(); err == nil {
		t.Fatal("expected a fault for save with an immediate target")
	}
}

func TestDivideByZeroFaults(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = uint32(isa.Encode(isa.Div, isa.Imm, 0))
	if _, err := cu.Tick(); err == nil {
		t.Fatal("expected a divide-by-zero fault")
	}
}

func TestTickCounters(t *testing.T) {
	cu := New(nil, nil)
	cu.IMem[0] = 0x0A000003 // call 3 (4 ticks, 1 instruction)
	cu.IMem[3] = 0x0B000000 // ret (2 ticks, 1 instruction)
	cu.IMem[1] = 0x11000000 // halt
	run(t, cu)

	if cu.Ticks != 7 {
		t.Errorf("ticks = %d, want 7", cu.Ticks)
	}
	if cu.Instructions != 3 {
		t.Errorf("instructions = %d, want 3", cu.Instructions)
	}
}
