// internal/llm/pricing.go
package llm

// PriceKind 计价方式
type PriceKind int

const (
	PriceByToken PriceKind = iota // 按输入/输出token计价
	PriceByChar                   // 按字符计价（TTS）
	PriceByUnit                   // 按次计价（图像），与尺寸无关
)

// ModelPrice 单个模型的静态价格
// token价为每百万token美元，char价为每百万字符美元，unit价为每次调用美元
type ModelPrice struct {
	Kind       PriceKind
	InputPerM  float64
	OutputPerM float64
	CharsPerM  float64
	PerUnit    float64
}

// priceTable 静态价格表
var priceTable = map[string]ModelPrice{
	"gpt-4.1":         {Kind: PriceByToken, InputPerM: 2.00, OutputPerM: 8.00},
	"gpt-4.1-mini":    {Kind: PriceByToken, InputPerM: 0.40, OutputPerM: 1.60},
	"gpt-4o":          {Kind: PriceByToken, InputPerM: 2.50, OutputPerM: 10.00},
	"gpt-image-1":     {Kind: PriceByUnit, PerUnit: 0.042},
	"dall-e-3":        {Kind: PriceByUnit, PerUnit: 0.040},
	"tts-1":           {Kind: PriceByChar, CharsPerM: 15.00},
	"tts-1-hd":        {Kind: PriceByChar, CharsPerM: 30.00},
	"gpt-4o-mini-tts": {Kind: PriceByChar, CharsPerM: 12.00},

	"gemini-2.5-pro":       {Kind: PriceByToken, InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.5-flash":     {Kind: PriceByToken, InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-tts": {Kind: PriceByChar, CharsPerM: 10.00},

	"imagen-3.0-generate-002": {Kind: PriceByUnit, PerUnit: 0.030},
	"imagen-3.0-fast":         {Kind: PriceByUnit, PerUnit: 0.020},
	"veo-2.0-generate-001":    {Kind: PriceByUnit, PerUnit: 0.350},
}

// EstimateCost 按静态价格表估算一次调用的成本
// 未登记的模型按0计，记账属于尽力而为，不阻断调用链路
func EstimateCost(modelID string, usage Usage) float64 {
	price, exists := priceTable[modelID]
	if !exists {
		return 0
	}

	switch price.Kind {
	case PriceByToken:
		return float64(usage.PromptTokens)/1e6*price.InputPerM +
			float64(usage.OutputTokens)/1e6*price.OutputPerM
	case PriceByChar:
		return float64(usage.Characters) / 1e6 * price.CharsPerM
	case PriceByUnit:
		units := usage.Units
		if units <= 0 {
			units = 1
		}
		return float64(units) * price.PerUnit
	}
	return 0
}
