package utils

import (
	"encoding/hex"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "bitcoin hash kept verbatim",
			input: "00000000000000000002a7c4c1e48d76c5a37902165a270156b7a8d72728a054",
			want:  "00000000000000000002a7c4c1e48d76c5a37902165a270156b7a8d72728a054",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  abc123\n",
			want:  "abc123",
		},
		{
			name:  "evm hash lowercased",
			input: "0xD4E56740F876AEF8C010B86A40D5F56745A118D0906A34E69AEC8C0DB1CB8FA3",
			want:  "0xd4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3",
		},
		{
			name:  "upper case prefix",
			input: "0XAB",
			want:  "0xab",
		},
		{
			name:  "base58 kept verbatim",
			input: "BLockGenesisGenesisGenesisGenesisGenesisf79b5d1CoW2",
			want:  "BLockGenesisGenesisGenesisGenesisGenesisf79b5d1CoW2",
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: ErrEmptyHash,
		},
		{
			name:    "bare prefix",
			input:   "0x",
			wantErr: ErrEmptyHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHash(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHash_OddLength(t *testing.T) {
	_, err := NormalizeHash("0xabc")
	require.ErrorIs(t, err, hex.ErrLength)
}

func TestNormalizeHash_InvalidHex(t *testing.T) {
	_, err := NormalizeHash("0xghij")

	var invalidByteErr hex.InvalidByteError
	require.True(t, errors.As(err, &invalidByteErr), "expected hex.InvalidByteError, got: %v", err)
}

func TestParseHeight(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{name: "decimal", input: "19000000", want: 19_000_000},
		{name: "leading zero is decimal", input: "0123", want: 123},
		{name: "hex", input: "0x121eac0", want: 19_000_000},
		{name: "zero", input: "0", want: 0},
		{name: "whitespace", input: " 42 ", want: 42},
		{name: "max uint64", input: "18446744073709551615", want: ^uint64(0)},
		{name: "negative", input: "-1", wantErr: true},
		{name: "overflow", input: "18446744073709551616", wantErr: true},
		{name: "garbage", input: "tip", wantErr: true},
		{name: "bad hex", input: "0xzz", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeight(tt.input)
			if tt.wantErr {
				var numErr *strconv.NumError
				require.ErrorAs(t, err, &numErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
