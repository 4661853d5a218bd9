// internal/audio/decoder_test.go
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV 在内存中构造一个PCM16小端WAV文件
func buildWAV(sampleRate, channels int, samples []int16) []byte {
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}

func wavDataURI(sampleRate, channels int, samples []int16) string {
	return "data:audio/wav;base64," +
		base64.StdEncoding.EncodeToString(buildWAV(sampleRate, channels, samples))
}

func TestDecodeWAVDataURI(t *testing.T) {
	samples := make([]int16, DefaultSampleRate) // 正好1秒
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	buf, err := Decode(wavDataURI(DefaultSampleRate, 1, samples))
	require.NoError(t, err)

	assert.Equal(t, DefaultSampleRate, buf.SampleRate)
	assert.Equal(t, 1, buf.Channels)
	assert.Len(t, buf.Samples, len(samples))
	assert.InDelta(t, 1.0, buf.Duration(), 1e-6)
}

func TestDecodeWAVSampleValues(t *testing.T) {
	buf, err := Decode(wavDataURI(24000, 1, []int16{0, 16384, -16384, 32767}))
	require.NoError(t, err)

	require.Len(t, buf.Samples, 4)
	assert.InDelta(t, 0.0, buf.Samples[0], 1e-4)
	assert.InDelta(t, 0.5, buf.Samples[1], 1e-4)
	assert.InDelta(t, -0.5, buf.Samples[2], 1e-4)
	assert.InDelta(t, 1.0, buf.Samples[3], 1e-3)
}

func TestDecodeRawPCMWithRate(t *testing.T) {
	raw := make([]byte, 16000*2) // 16kHz下的1秒静音
	payload := "data:audio/pcm;rate=16000;base64," + base64.StdEncoding.EncodeToString(raw)

	buf, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 16000, buf.SampleRate)
	assert.InDelta(t, 1.0, buf.Duration(), 1e-6)
}

func TestDecodeL16MimeCaseInsensitive(t *testing.T) {
	// google的TTS返回大写的audio/L16，且不一定带codec参数
	raw := make([]byte, 24000*2)
	payload := "data:audio/L16;rate=24000;base64," + base64.StdEncoding.EncodeToString(raw)

	buf, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.SampleRate)
	assert.InDelta(t, 1.0, buf.Duration(), 1e-6)
}

func TestDecodeBarePCMDefaultsSampleRate(t *testing.T) {
	raw := make([]byte, DefaultSampleRate) // 半秒
	buf, err := Decode(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	assert.Equal(t, DefaultSampleRate, buf.SampleRate)
	assert.InDelta(t, 0.5, buf.Duration(), 1e-6)
}

func TestDecodeInvalidPayloads(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err, "空负载应报错")

	_, err = Decode("data:audio/wav;base64,!!!不是base64!!!")
	assert.Error(t, err, "非法base64应报错")

	_, err = Decode("data:video/mp4;base64," + base64.StdEncoding.EncodeToString([]byte("mp4data")))
	assert.Error(t, err, "不支持的格式应报错")
}

func TestDecodeTruncatedWAV(t *testing.T) {
	full := buildWAV(24000, 1, []int16{1, 2, 3, 4})
	_, err := Decode(base64.StdEncoding.EncodeToString(full[:20]))
	assert.Error(t, err, "截断的WAV应报错")
}

func TestParsePayloadStripsDataURI(t *testing.T) {
	raw, mime, err := ParsePayload("data:audio/mp3;base64," + base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "audio/mp3", mime)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}
