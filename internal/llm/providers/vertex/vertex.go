// internal/llm/providers/vertex/vertex.go
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
)

func init() {
	llm.Register("vertex", func() llm.Provider {
		return &Provider{
			region: "us-central1",
		}
	})
}

// Provider 封装Vertex AI的图像生成(Imagen/Veo predict端点)
// 使用用户自带的OAuth访问令牌，不在进程内缓存凭据
type Provider struct {
	accessToken string
	projectID   string
	region      string
	baseURL     string
	client      *http.Client
}

func (p *Provider) Initialize(config map[string]string) error {
	accessToken, exists := config["access_token"]
	if !exists || accessToken == "" {
		// 兼容以api_key传入访问令牌的旧配置
		accessToken = config["api_key"]
	}
	if accessToken == "" {
		return errors.New("vertex访问令牌未提供")
	}

	projectID, exists := config["project_id"]
	if !exists || projectID == "" {
		return errors.New("vertex项目ID未提供")
	}

	p.accessToken = accessToken
	p.projectID = projectID
	p.client = &http.Client{}

	if region, exists := config["region"]; exists && region != "" {
		p.region = region
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	} else {
		p.baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", p.region)
	}

	return nil
}

func (p *Provider) GetName() string {
	return "vertex ai"
}

// GenerateText Vertex提供者只承担图像模型
func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	return nil, errors.New("vertex提供者不支持文本生成")
}

func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = "imagen-3.0-generate-002"
	}

	parameters := map[string]interface{}{
		"sampleCount": 1,
	}
	if req.Size != "" {
		parameters["aspectRatio"] = req.Size
	}

	requestBody := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": req.Prompt},
		},
		"parameters": parameters,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:predict",
		p.baseURL, p.projectID, p.region, model)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.vendorError(httpResp)
	}

	var response struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
			MimeType           string `json:"mimeType"`
		} `json:"predictions"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Predictions) == 0 || response.Predictions[0].BytesBase64Encoded == "" {
		return nil, errors.New("vertex未返回图像数据")
	}

	mimeType := response.Predictions[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &llm.ImageResponse{
		Data:         fmt.Sprintf("data:%s;base64,%s", mimeType, response.Predictions[0].BytesBase64Encoded),
		MimeType:     mimeType,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// SynthesizeSpeech Vertex提供者只承担图像模型
func (p *Provider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	return nil, errors.New("vertex提供者不支持语音合成")
}

// vendorError 尽量带出供应商的原始错误消息
func (p *Provider) vendorError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
			return fmt.Errorf("vertex API错误(%d): %v", resp.StatusCode, errorObj["message"])
		}
	}
	return fmt.Errorf("vertex API错误(%d): %s", resp.StatusCode, string(body))
}
