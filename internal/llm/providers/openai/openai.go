// internal/llm/providers/openai/openai.go
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
)

func init() {
	llm.Register("openai", func() llm.Provider {
		return &Provider{
			baseURL: "https://api.openai.com/v1",
		}
	})
}

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
	orgID        string // 可选，组织隔离的账号需要
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("openai_api密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gpt-4.1-mini"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	if orgID, exists := config["org_id"]; exists {
		p.orgID = orgID
	}

	return nil
}

func (p *Provider) GetName() string {
	return "openai"
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.orgID != "" {
		req.Header.Set("OpenAI-Organization", p.orgID)
	}
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	// 构建chat completions请求
	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}

	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}

	if req.Temperature > 0 {
		requestBody["temperature"] = req.Temperature
	}

	// 添加任何额外参数
	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.vendorError(httpResp)
	}

	// 解析响应
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("openai未返回任何结果")
	}

	return &llm.TextResponse{
		Text:         response.Choices[0].Message.Content,
		FinishReason: response.Choices[0].FinishReason,
		PromptTokens: response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = "gpt-image-1"
	}

	requestBody := map[string]interface{}{
		"model":  model,
		"prompt": req.Prompt,
		"n":      1,
	}

	if req.Size != "" {
		requestBody["size"] = req.Size
	}

	// dall-e系列需要显式要求base64返回
	if model != "gpt-image-1" {
		requestBody["response_format"] = "b64_json"
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.baseURL+"/images/generations", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.vendorError(httpResp)
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, errors.New("openai未返回图像数据")
	}

	return &llm.ImageResponse{
		Data:         "data:image/png;base64," + response.Data[0].B64JSON,
		MimeType:     "image/png",
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

func (p *Provider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	model := req.Model
	if model == "" {
		model = "tts-1"
	}

	voice := req.Voice
	if voice == "" {
		voice = "alloy"
	}

	requestBody := map[string]interface{}{
		"model":           model,
		"input":           req.Text,
		"voice":           voice,
		"response_format": "wav",
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.baseURL+"/audio/speech", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.vendorError(httpResp)
	}

	// speech端点直接返回音频字节流
	audioBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if len(audioBytes) == 0 {
		return nil, errors.New("openai未返回音频数据")
	}

	return &llm.SpeechResponse{
		Data:         "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(audioBytes),
		Format:       "wav",
		Characters:   len([]rune(req.Text)),
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// vendorError 尽量带出供应商的原始错误消息
func (p *Provider) vendorError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
			return fmt.Errorf("openai API错误(%d): %v", resp.StatusCode, errorObj["message"])
		}
	}
	return fmt.Errorf("openai API错误(%d): %s", resp.StatusCode, string(body))
}
