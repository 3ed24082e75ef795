package util

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		bytes.Repeat([]byte{0xff}, 32),
	}

	for _, tt := range tests {
		got, err := HexToBytes(BytesToHex(tt))
		if err != nil {
			t.Errorf("round trip of % x: %v", tt, err)
			continue
		}
		if !bytes.Equal(got, tt) {
			t.Errorf("round trip of % x gave % x", tt, got)
		}
	}
}

func TestHexToBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"0xdead", []byte{0xde, 0xad}, false},
		{"", []byte{}, false},
		{"xyz", nil, true},
		{"abc", nil, true}, // odd length
	}

	for _, tt := range tests {
		got, err := HexToBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("HexToBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !bytes.Equal(got, tt.want) {
			t.Errorf("HexToBytes(%q) = % x, want % x", tt.in, got, tt.want)
		}
	}
}

func TestNonceToHex(t *testing.T) {
	tests := []struct {
		nonce uint32
		want  string
	}{
		{0, "00000000"},
		{0x2a, "0000002a"},
		{0x40000000, "40000000"},
		{0xffffffff, "ffffffff"},
	}

	for _, tt := range tests {
		if got := NonceToHex(tt.nonce); got != tt.want {
			t.Errorf("NonceToHex(%#x) = %q, want %q", tt.nonce, got, tt.want)
		}
	}
}

func TestValidateNonce(t *testing.T) {
	if !ValidateNonce("0000002a") {
		t.Error("valid nonce rejected")
	}
	for _, bad := range []string{"", "2a", "000000002a", "zzzzzzzz"} {
		if ValidateNonce(bad) {
			t.Errorf("ValidateNonce(%q) should fail", bad)
		}
	}
}

func TestValidateHash(t *testing.T) {
	if !ValidateHash(BytesToHex(bytes.Repeat([]byte{0xab}, 32))) {
		t.Error("valid hash rejected")
	}
	if ValidateHash("abcd") {
		t.Error("short hash accepted")
	}
}

func TestPadBytes(t *testing.T) {
	got := PadBytes([]byte{1, 2}, 4)
	if !bytes.Equal(got, []byte{1, 2, 0, 0}) {
		t.Errorf("PadBytes = % x", got)
	}

	// Already long enough: unchanged
	in := []byte{1, 2, 3, 4, 5}
	if got := PadBytes(in, 4); !bytes.Equal(got, in) {
		t.Errorf("PadBytes long input = % x", got)
	}
}

func TestFormatHashrate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12.5, "12.50 H/s"},
		{1500, "1.50 kH/s"},
		{2_500_000, "2.50 MH/s"},
		{3_000_000_000, "3.00 GH/s"},
	}

	for _, tt := range tests {
		if got := FormatHashrate(tt.in); got != tt.want {
			t.Errorf("FormatHashrate(%f) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRuntime(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0:00:00"},
		{61, "0:01:01"},
		{3661, "1:01:01"},
		{90000, "25:00:00"},
	}

	for _, tt := range tests {
		if got := FormatRuntime(tt.in); got != tt.want {
			t.Errorf("FormatRuntime(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
