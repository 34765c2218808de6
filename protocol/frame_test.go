package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStringMessage(t *testing.T) {
	data, err := Encode(StringMessage(SetWidgetProperty, 1, "4 label x"))
	require.NoError(t, err)
	assert.Equal(t, []byte{19, 0, 1, 0, 9, '4', ' ', 'l', 'a', 'b', 'e', 'l', ' ', 'x'}, data)

	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, SetWidgetProperty, f.Command)
	assert.Equal(t, uint16(1), f.ID)
	assert.Equal(t, "4 label x", f.Body)
}

func TestEncodeResponse(t *testing.T) {
	data, err := Encode(IllegalCommandBodyFrame(258))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 0, 11}, data)

	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, IllegalCommandBodyFrame(258), f)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte{19, 0})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte{19, 0, 1, 0, 5, 'a'})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte{0, 0, 1, 0, 200, 'a'})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeBodyTooLarge(t *testing.T) {
	_, err := Encode(StringMessage(Hardware, 1, strings.Repeat("x", 1<<16)))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFrameString(t *testing.T) {
	assert.Equal(t, "response id=3 code=OK", OKFrame(3).String())
	assert.Equal(t, `setProperty id=1 body="4 color #23C48E"`, StringMessage(SetWidgetProperty, 1, "4 color #23C48E").String())
}
