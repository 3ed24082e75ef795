package target

import (
	"math/big"
	"testing"
)

func TestExpandTarget(t *testing.T) {
	tests := []struct {
		compact uint32
		want    U256
	}{
		// Bitcoin genesis difficulty: mantissa 0x00ffff at bit offset 8*(0x1d-3)=208
		{0x1d00ffff, U256{0x00000000ffff0000, 0, 0, 0}},
		// Exponent 3: mantissa unshifted in the least significant word
		{0x03abcdef, U256{0, 0, 0, 0x00abcdef}},
		// Exponent 1: mantissa shifted right by 16 bits
		{0x01abcdef, U256{0, 0, 0, 0x000000ab}},
		// Exponent 0: mantissa shifted right by 24 bits
		{0x00abcdef, U256{0, 0, 0, 0}},
		// Exponent 4: one byte up from exponent 3
		{0x04abcdef, U256{0, 0, 0, 0xabcdef00}},
		// Exponent 12: mantissa lands in the second word from the bottom
		{0x0cffffff, U256{0, 0, 0x0000000000ffffff << 8, 0}},
	}

	for _, tt := range tests {
		got := ExpandTarget(tt.compact)
		if got != tt.want {
			t.Errorf("ExpandTarget(%#x) = %v, want %v", tt.compact, got, tt.want)
		}
	}
}

func TestExpandTargetMantissaRoundTrip(t *testing.T) {
	// For exponents >= 3 the mantissa must be recoverable at bit offset 8*(e-3)
	for _, compact := range []uint32{0x1d00ffff, 0x1a44b9f2, 0x08ffffff, 0x04abcdef} {
		exponent := uint(compact >> 24)
		mantissa := new(big.Int).SetUint64(uint64(compact & 0x00FFFFFF))

		expanded := ExpandTarget(compact).Big()
		recovered := new(big.Int).Rsh(expanded, 8*(exponent-3))
		recovered.And(recovered, big.NewInt(0xFFFFFF))

		if recovered.Cmp(mantissa) != 0 {
			t.Errorf("ExpandTarget(%#x): recovered mantissa %#x, want %#x",
				compact, recovered, mantissa)
		}
	}
}

func TestExpandTargetClamp(t *testing.T) {
	// Exponent 0xff would shift the mantissa far past bit 255; bits above
	// the top must be dropped, not wrapped
	got := ExpandTarget(0xff00ffff)
	if !got.IsZero() {
		t.Errorf("ExpandTarget(0xff00ffff) = %v, want zero", got)
	}
}

func TestHashValue(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}

	got := HashValue(hash)
	want := U256{
		0x0001020304050607,
		0x08090a0b0c0d0e0f,
		0x1011121314151617,
		0x18191a1b1c1d1e1f,
	}
	if got != want {
		t.Errorf("HashValue = %v, want %v", got, want)
	}
}

func TestMeets(t *testing.T) {
	targetU := ExpandTarget(0x1d00ffff)

	// Hash with MSB run 00 00 00 00 00 00 00 ff ... is below the target
	var lowHash [32]byte
	lowHash[7] = 0xff
	if !Meets(HashValue(lowHash), targetU) {
		t.Error("low hash should meet target")
	}

	// Hash with a high leading byte is above
	var highHash [32]byte
	highHash[0] = 0xff
	if Meets(HashValue(highHash), targetU) {
		t.Error("high hash should not meet target")
	}

	// Equality is a miss: comparison is strict
	var eqHash [32]byte
	copy(eqHash[:], bigToBytes(targetU.Big()))
	if Meets(HashValue(eqHash), targetU) {
		t.Error("hash equal to target should not meet it")
	}
}

func TestMeetsAgreesWithBigInt(t *testing.T) {
	// Property: Meets(h, t) iff big(h) < big(t) for every compact target
	compacts := []uint32{0x1d00ffff, 0x1a44b9f2, 0x08ffffff, 0x03abcdef, 0x2100ffff}
	hashes := [][32]byte{}

	var h [32]byte
	hashes = append(hashes, h)
	h[31] = 1
	hashes = append(hashes, h)
	h = [32]byte{}
	h[0] = 0xff
	hashes = append(hashes, h)
	h = [32]byte{}
	for i := range h {
		h[i] = byte(137 * i)
	}
	hashes = append(hashes, h)

	for _, compact := range compacts {
		tgt := ExpandTarget(compact)
		for _, hash := range hashes {
			hv := HashValue(hash)
			want := hv.Big().Cmp(tgt.Big()) < 0
			if got := Meets(hv, tgt); got != want {
				t.Errorf("Meets mismatch for compact %#x hash %x: got %v, want %v",
					compact, hash, got, want)
			}
		}
	}
}

func TestShiftLeft(t *testing.T) {
	tests := []struct {
		in   U256
		n    uint
		want U256
	}{
		{U256{0, 0, 0, 1}, 0, U256{0, 0, 0, 1}},
		{U256{0, 0, 0, 1}, 64, U256{0, 0, 1, 0}},
		{U256{0, 0, 0, 1}, 255, U256{0x8000000000000000, 0, 0, 0}},
		{U256{0, 0, 0, 1}, 256, U256{}},
		{U256{0, 0, 0, 0xffffffffffffffff}, 4, U256{0, 0, 0xf, 0xfffffffffffffff0}},
	}

	for _, tt := range tests {
		if got := tt.in.ShiftLeft(tt.n); got != tt.want {
			t.Errorf("%v.ShiftLeft(%d) = %v, want %v", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDifficulty(t *testing.T) {
	// Difficulty of the all-ones target is ~1
	allOnes := U256{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
	if d := Difficulty(allOnes); d < 0.99 || d > 1.01 {
		t.Errorf("Difficulty(max) = %f, want ~1", d)
	}

	// Halving the target doubles the difficulty
	half := allOnes.ShiftLeft(0)
	half[0] >>= 1
	d1 := Difficulty(allOnes)
	d2 := Difficulty(half)
	if ratio := d2 / d1; ratio < 1.9 || ratio > 2.1 {
		t.Errorf("difficulty ratio = %f, want ~2", ratio)
	}

	if Difficulty(U256{}) != 0 {
		t.Error("Difficulty(zero) should return 0")
	}
}

func TestParseCompact(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"1d00ffff", 0x1d00ffff, false},
		{"f3220000", 0xf3220000, false},
		{"0x1d00ffff", 0x1d00ffff, false},
		{"", 0, true},
		{"zzzz", 0, true},
		{"1ffffffff", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCompact(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompact(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCompact(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func bigToBytes(b *big.Int) []byte {
	buf := make([]byte, 32)
	b.FillBytes(buf)
	return buf
}

func BenchmarkMeets(b *testing.B) {
	tgt := ExpandTarget(0x1d00ffff)
	var hash [32]byte
	hash[7] = 0xff
	hv := HashValue(hash)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Meets(hv, tgt)
	}
}

func BenchmarkHashValue(b *testing.B) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashValue(hash)
	}
}
