// internal/models/script.go
package models

// Script 所有文本提供商统一输出的脚本结构
type Script struct {
	Title  string       `json:"title"`
	Scenes []ScriptLine `json:"scenes"`
}

// ScriptLine 一条脚本行：旁白文本 + 配图提示词
type ScriptLine struct {
	Speaker      string `json:"speaker,omitempty"`
	Voiceover    string `json:"voiceover"`
	VisualPrompt string `json:"visual_prompt,omitempty"`
}

// LineCount 返回脚本行数
func (s *Script) LineCount() int {
	if s == nil {
		return 0
	}
	return len(s.Scenes)
}
