// internal/audio/decoder.go
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// DefaultSampleRate 管线统一的解码采样率
const DefaultSampleRate = 24000

// MIME可能携带参数，如audio/L16;codec=pcm;rate=24000
var dataURLPattern = regexp.MustCompile(`^data:([^,]+);base64,`)

// ParsePayload 剥离data-URI前缀并解码base64，返回原始字节和MIME类型
func ParsePayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", errors.New("音频负载为空")
	}

	mimeType := ""
	if matches := dataURLPattern.FindStringSubmatch(payload); len(matches) == 2 {
		mimeType = matches[1]
		payload = payload[len(matches[0]):]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("base64解码失败: %w", err)
	}

	if len(raw) == 0 {
		return nil, "", errors.New("音频负载为空")
	}

	return raw, mimeType, nil
}

// Decode 把紧凑编码形式还原为可播放的PCM缓冲
// WAV按文件头解析；裸PCM按MIME里的rate参数或默认采样率处理
func Decode(payload string) (*models.AudioBuffer, error) {
	raw, mimeType, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	if isWAV(raw) {
		return decodeWAV(raw)
	}

	// google返回的MIME是audio/L16，大小写不敏感处理
	mime := strings.ToLower(mimeType)
	if strings.Contains(mime, "pcm") || strings.Contains(mime, "l16") || mime == "" {
		return decodePCM16(raw, sampleRateFromMime(mime), 1), nil
	}

	return nil, fmt.Errorf("不支持的音频格式: %s", mimeType)
}

func isWAV(raw []byte) bool {
	return len(raw) >= 12 && bytes.Equal(raw[0:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WAVE"))
}

// sampleRateFromMime 从"audio/pcm;rate=24000"这类MIME里提取采样率
func sampleRateFromMime(mimeType string) int {
	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "rate=") {
			if rate, err := strconv.Atoi(strings.TrimPrefix(part, "rate=")); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return DefaultSampleRate
}

// decodeWAV 解析RIFF/WAVE容器，只支持PCM16
func decodeWAV(raw []byte) (*models.AudioBuffer, error) {
	if len(raw) < 44 {
		return nil, errors.New("WAV数据不完整")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		dataChunk     []byte
	)

	// 逐块扫描，fmt块和data块的顺序不保证
	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(raw) {
			chunkSize = len(raw) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, errors.New("WAV格式块不完整")
			}
			audioFormat := binary.LittleEndian.Uint16(raw[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("不支持的WAV编码格式: %d", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			dataChunk = raw[body : body+chunkSize]
		}

		// 块按2字节对齐
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate <= 0 || channels <= 0 {
		return nil, errors.New("WAV缺少格式信息")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("不支持的位深: %d", bitsPerSample)
	}
	if len(dataChunk) == 0 {
		return nil, errors.New("WAV缺少数据块")
	}

	buf := decodePCM16(dataChunk, sampleRate, channels)
	return buf, nil
}

// decodePCM16 小端16位PCM转float32采样
func decodePCM16(raw []byte, sampleRate, channels int) *models.AudioBuffer {
	sampleCount := len(raw) / 2
	samples := make([]float32, sampleCount)
	for i := 0; i < sampleCount; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}

	return &models.AudioBuffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
	}
}
