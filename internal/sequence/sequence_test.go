package sequence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EncodeDecodeRaw_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	seq := Sequence{0, 1, 2, 9999999}
	blob := EncodeRaw(seq)
	assert.Len(blob, 8*len(seq))

	decoded, err := DecodeRaw(blob)
	require.NoError(t, err)
	assert.Equal(seq, decoded)
}

func Test_DecodeRaw_RejectsBadLength(t *testing.T) {
	assert := assert.New(t)

	_, err := DecodeRaw([]byte{1, 2, 3})
	assert.Error(err)
}

func Test_RawFileName_IsStableAndPrefixed(t *testing.T) {
	assert := assert.New(t)

	seq := Sequence{1, 2, 3}
	name1 := RawFileName(seq)
	name2 := RawFileName(seq)

	assert.Equal(name1, name2)
	assert.True(IsRawFileName(name1))
	assert.False(IsRawFileName("some-concrete-output.txt"))
}

func Test_LoadFile_BranchesOnName(t *testing.T) {
	assert := assert.New(t)

	seq := Sequence{5, 6, 7}
	raw := EncodeRaw(seq)

	loaded, err := LoadFile(RawFileName(seq), raw, func([]byte) (Sequence, error) {
		return nil, errors.New("unparse should not be called for a raw file")
	})
	require.NoError(t, err)
	assert.Equal(seq, loaded)

	called := false
	loaded, err = LoadFile("output.bin", []byte("abc"), func(data []byte) (Sequence, error) {
		called = true
		assert.Equal([]byte("abc"), data)
		return Sequence{42}, nil
	})
	require.NoError(t, err)
	assert.True(called)
	assert.Equal(Sequence{42}, loaded)
}
