package random

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrypto(t *testing.T) {
	b, err := Crypto{}.Bytes(28)
	require.NoError(t, err)
	assert.Len(t, b, 28)

	_, err = Crypto{}.Bytes(-1)
	assert.Error(t, err)

	ts, err := Crypto{}.Timestamp()
	require.NoError(t, err)
	assert.NotZero(t, ts)
}

func TestRecordAndReplay(t *testing.T) {
	rec := NewRecorder(Crypto{})
	ts, err := rec.Timestamp()
	require.NoError(t, err)
	first, err := rec.Bytes(28)
	require.NoError(t, err)
	second, err := rec.Bytes(16)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, rec.Tape().Save(fs, "/tape.json"))
	tape, err := LoadTape(fs, "/tape.json")
	require.NoError(t, err)
	assert.Equal(t, 3, tape.Len())

	replay := NewReplay(tape)
	gotTs, err := replay.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, ts, gotTs)
	got, err := replay.Bytes(28)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = replay.Bytes(16)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.Zero(t, replay.Remaining())

	_, err = replay.Bytes(1)
	assert.ErrorIs(t, err, ErrTapeExhausted)
}

func TestReplayMismatch(t *testing.T) {
	replay := NewReplay(&Tape{Draws: []Draw{
		{Kind: KindBytes, Bytes: "0102"},
		{Kind: KindTime, Time: 7},
	}})

	_, err := replay.Timestamp()
	assert.ErrorIs(t, err, ErrTapeMismatch)
	_, err = replay.Bytes(3)
	assert.ErrorIs(t, err, ErrTapeMismatch)
	assert.Equal(t, 1, replay.Remaining())
}

func TestLoadTapeErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadTape(fs, "/missing.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte(`{"draws":[{"kind":"coin"}]}`), 0644))
	_, err = LoadTape(fs, "/bad.json")
	assert.ErrorIs(t, err, ErrTapeMismatch)

	require.NoError(t, afero.WriteFile(fs, "/hex.json", []byte(`{"draws":[{"kind":"bytes","bytes":"zz"}]}`), 0644))
	_, err = LoadTape(fs, "/hex.json")
	assert.Error(t, err)
}

func TestReader(t *testing.T) {
	replay := NewReplay(&Tape{Draws: []Draw{{Kind: KindBytes, Bytes: "aabbcc"}}})
	buf := make([]byte, 3)
	n, err := Reader(replay).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, buf)

	_, err = Reader(replay).Read(buf)
	assert.ErrorIs(t, err, ErrTapeExhausted)
}
