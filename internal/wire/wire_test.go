package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEagerRoundTrip(t *testing.T) {
	msg := Eager{
		Header: Header{Type: KindEagerSend, Credit: 3},
		BMITag: -7,
		Class:  2,
		Body:   []byte("payload"),
	}
	buf := EncodeEager(msg)

	got, err := DecodeEager(buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, got.Header)
	assert.Equal(t, msg.BMITag, got.BMITag)
	assert.Equal(t, msg.Class, got.Class)
	assert.Equal(t, msg.Body, got.Body)
}

func TestDecodeEagerRejectsShortBuffer(t *testing.T) {
	_, err := DecodeEager([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRTSRoundTrip(t *testing.T) {
	msg := RTS{
		Header:   Header{Type: KindRTS, Credit: 1},
		BMITag:   42,
		MopID:    0xdeadbeef,
		TotalLen: 1 << 20,
	}
	buf := EncodeRTS(msg)
	require.Len(t, buf, rtsSize)

	got, err := DecodeRTS(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestCTSRoundTripWithBufList(t *testing.T) {
	msg := CTS{
		Header:       Header{Type: KindCTS},
		RTSMopID:     0xdeadbeef,
		BufListTotal: 300,
		BufList: []BufListEntry{
			{RemoteAddr: 0x1000, Len: 100, RKey: 1},
			{RemoteAddr: 0x2000, Len: 200, RKey: 2},
		},
	}
	buf := EncodeCTS(msg)
	require.Len(t, buf, ctsFixedSize+2*bufListEntrySize)

	got, err := DecodeCTS(buf)
	require.NoError(t, err)
	assert.Equal(t, msg.RTSMopID, got.RTSMopID)
	assert.Equal(t, msg.BufListTotal, got.BufListTotal)
	assert.Equal(t, msg.BufList, got.BufList)
}

func TestDecodeCTSRejectsTruncatedBufList(t *testing.T) {
	msg := CTS{BufList: []BufListEntry{{RemoteAddr: 1, Len: 1, RKey: 1}}}
	buf := EncodeCTS(msg)
	_, err := DecodeCTS(buf[:len(buf)-4])
	assert.Error(t, err)
}

func TestRTSDoneRoundTrip(t *testing.T) {
	msg := RTSDone{Header: Header{Type: KindRTSDone}, MopID: 99}
	buf := EncodeRTSDone(msg)

	got, err := DecodeRTSDone(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestCreditAndByeCarryOnlyTheHeader(t *testing.T) {
	creditBuf := EncodeCredit(Header{Credit: 5})
	h, err := DecodeHeaderOnly(creditBuf)
	require.NoError(t, err)
	assert.Equal(t, KindCredit, h.Type)
	assert.EqualValues(t, 5, h.Credit)

	byeBuf := EncodeBye(Header{})
	h2, err := DecodeHeaderOnly(byeBuf)
	require.NoError(t, err)
	assert.Equal(t, KindBye, h2.Type)
}

func TestPeekHeaderDispatchesOnType(t *testing.T) {
	buf := EncodeRTSDone(RTSDone{Header: Header{Type: KindRTSDone}})
	h, err := PeekHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, KindRTSDone, h.Type)
}
