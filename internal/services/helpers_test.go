// internal/services/helpers_test.go
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/storage"
)

// buildWAV 构造PCM16单声道WAV字节
func buildWAV(sampleRate int, sampleCount int) []byte {
	dataSize := sampleCount * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < sampleCount; i++ {
		binary.Write(&buf, binary.LittleEndian, int16(i%512))
	}

	return buf.Bytes()
}

// wavDataURI 半秒24kHz语音的data-URI
func wavDataURI() string {
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(buildWAV(24000, 12000))
}

// fakeProvider 可编程的测试提供者
type fakeProvider struct {
	mu sync.Mutex

	textResponse string
	textErr      error

	imageCalls int
	imageErr   error
	noImage    bool

	speechCalls   int
	speechPayload string
	speechErr     error
	failAtCall    int // 第N次语音调用失败，0表示不失败
}

func (p *fakeProvider) Initialize(config map[string]string) error { return nil }
func (p *fakeProvider) GetName() string                           { return "fake" }

func (p *fakeProvider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	if p.textErr != nil {
		return nil, p.textErr
	}
	return &llm.TextResponse{Text: p.textResponse, PromptTokens: 100, OutputTokens: 200}, nil
}

func (p *fakeProvider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	p.mu.Lock()
	p.imageCalls++
	p.mu.Unlock()

	if p.noImage {
		return nil, llm.ErrNoImageCapability
	}
	if p.imageErr != nil {
		return nil, p.imageErr
	}
	return &llm.ImageResponse{Data: "data:image/png;base64,aW1n"}, nil
}

func (p *fakeProvider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	p.mu.Lock()
	p.speechCalls++
	calls := p.speechCalls
	p.mu.Unlock()

	if p.failAtCall > 0 && calls >= p.failAtCall {
		return nil, errors.New("模拟的语音合成故障")
	}
	if p.speechErr != nil {
		return nil, p.speechErr
	}

	payload := p.speechPayload
	if payload == "" {
		payload = wavDataURI()
	}
	return &llm.SpeechResponse{Data: payload, Characters: len(req.Text)}, nil
}

// registerFake 把fake挂到openai槽位并返回实例
// 注册表是进程级的，测试串行执行时互不干扰
func registerFake(t *testing.T, p *fakeProvider) {
	t.Helper()
	llm.Register("openai", func() llm.Provider { return p })
}

// testGenerationConfig 带openai凭据的调用配置
func testGenerationConfig() GenerationConfig {
	return GenerationConfig{Providers: map[string]map[string]string{
		"openai": {"api_key": "test-key"},
	}}
}

func newTestStore(t *testing.T) *storage.FileStorage {
	t.Helper()

	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err, "创建测试存储失败")
	return store
}

// recordingObserver 记录收到的用量通知
type recordingObserver struct {
	mu      sync.Mutex
	usages  []llm.Usage
	panicky bool
}

func (o *recordingObserver) ObserveUsage(usage llm.Usage) {
	if o.panicky {
		panic("观察者故障")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.usages = append(o.usages, usage)
}

// scriptDraft 构造带脚本的测试草稿
func scriptDraft(lines int) *models.Draft {
	scenes := make([]models.ScriptLine, 0, lines)
	for i := 0; i < lines; i++ {
		scenes = append(scenes, models.ScriptLine{
			Speaker:      "host",
			Voiceover:    "这是第几行的旁白内容",
			VisualPrompt: "studio shot",
		})
	}

	return &models.Draft{
		ID:     "draft-1",
		UserID: "user-1",
		Type:   models.DraftTypeShorts,
		Title:  "测试草稿",
		Payload: &models.DraftPayload{
			Topic: "深海生物",
			Script: &models.Script{
				Title:  "深海生物",
				Scenes: scenes,
			},
			VoiceMap: map[string]string{"host": "alloy", "default": "echo"},
		},
	}
}
