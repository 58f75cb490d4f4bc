package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"100MB", 100 * MB, false},
		{"1.5 GB", ByteSize(1.5 * float64(GB)), false},
		{"500KB", 500 * KB, false},
		{"2TiB", 2 * TB, false},
		{"1024", 1024, false},
		{"0", 0, false},
		{"", 0, true},
		{"lots", 0, true},
		{"10XB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "100MB", (100 * MB).String())
	assert.Equal(t, "1.5GB", ByteSize(1.5*float64(GB)).String())
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "0B", ByteSize(0).String())
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("250MB")))
	assert.Equal(t, 250*MB, b)

	assert.Error(t, b.UnmarshalText([]byte("nope")))
}

func TestByteSizeUnmarshalJSON(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalJSON([]byte(`"1GB"`)))
	assert.Equal(t, GB, b)

	require.NoError(t, b.UnmarshalJSON([]byte(`4096`)))
	assert.Equal(t, ByteSize(4096), b)
}
