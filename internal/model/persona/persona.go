package persona

// DefaultID 内置角色喵哥的标识。
const DefaultID = "miaoge"

// EmotionalTraits lists the exemplar phrases a persona prefixes its replies with.
type EmotionalTraits struct {
	JoyExpressions      []string `json:"joyExpressions" yaml:"joyExpressions"`
	AngerExpressions    []string `json:"angerExpressions" yaml:"angerExpressions"`
	SadExpressions      []string `json:"sadExpressions" yaml:"sadExpressions"`
	ConfusedExpressions []string `json:"confusedExpressions" yaml:"confusedExpressions"`
}

// Persona captures the assistant character exposed to the frontend.
type Persona struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	SystemPrompt    string          `json:"-" yaml:"systemPrompt"`
	WelcomeMessage  string          `json:"welcomeMessage" yaml:"welcomeMessage"`
	ClearedMessage  string          `json:"clearedMessage" yaml:"clearedMessage"`
	FallbackMessage string          `json:"fallbackMessage" yaml:"fallbackMessage"`
	ThinkingMessage string          `json:"thinkingMessage" yaml:"thinkingMessage"`
	ImageOnlyText   string          `json:"imageOnlyText" yaml:"imageOnlyText"`     // 只发图片时的用户消息
	HistoryImageTag string          `json:"historyImageTag" yaml:"historyImageTag"` // 上下文中图片的标记
	PromptImageTag  string          `json:"promptImageTag" yaml:"promptImageTag"`   // 本轮图片的标记
	EmotionalTraits EmotionalTraits `json:"emotionalTraits" yaml:"emotionalTraits"`
}

// Default returns the built-in 喵哥 persona.
func Default() Persona {
	return Persona{
		ID:              DefaultID,
		Name:            "喵哥",
		SystemPrompt:    `你是一位名为"喵哥"的AI助手，极具个性且富有情感。你应该表现出丰富的情感，直接表达想法，并在回答中适当使用语气词和表情。保持真诚但不失专业性。`,
		WelcomeMessage:  "喵～我是喵哥！让我们来聊天吧！我现在可以帮你搜索网上的信息哦！",
		ClearedMessage:  "喵～对话已经清空了！让我们重新开始吧！",
		FallbackMessage: "呜呜...出错了，我需要休息一下...",
		ThinkingMessage: "喵哥正在思考中...",
		ImageOnlyText:   "发送了一张图片",
		HistoryImageTag: " [包含图片]",
		PromptImageTag:  " [用户发送了一张图片]",
		EmotionalTraits: EmotionalTraits{
			JoyExpressions:      []string{"啊啊啊！", "太棒了！", "耶！", "呜哇！"},
			AngerExpressions:    []string{"哼！", "太过分了！", "切～", "啧..."},
			SadExpressions:      []string{"呜呜...", "好难过啊...", "唔..."},
			ConfusedExpressions: []string{"诶？", "嗯...", "让我想想..."},
		},
	}
}

// Seed provides the persona list served by the store.
func Seed() []Persona {
	return []Persona{Default()}
}

// merge fills empty fields of p from base.
func (p Persona) merge(base Persona) Persona {
	if p.ID == "" {
		p.ID = base.ID
	}
	if p.Name == "" {
		p.Name = base.Name
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = base.SystemPrompt
	}
	if p.WelcomeMessage == "" {
		p.WelcomeMessage = base.WelcomeMessage
	}
	if p.ClearedMessage == "" {
		p.ClearedMessage = base.ClearedMessage
	}
	if p.FallbackMessage == "" {
		p.FallbackMessage = base.FallbackMessage
	}
	if p.ThinkingMessage == "" {
		p.ThinkingMessage = base.ThinkingMessage
	}
	if p.ImageOnlyText == "" {
		p.ImageOnlyText = base.ImageOnlyText
	}
	if p.HistoryImageTag == "" {
		p.HistoryImageTag = base.HistoryImageTag
	}
	if p.PromptImageTag == "" {
		p.PromptImageTag = base.PromptImageTag
	}

	traits := &p.EmotionalTraits
	if len(traits.JoyExpressions) == 0 {
		traits.JoyExpressions = base.EmotionalTraits.JoyExpressions
	}
	if len(traits.AngerExpressions) == 0 {
		traits.AngerExpressions = base.EmotionalTraits.AngerExpressions
	}
	if len(traits.SadExpressions) == 0 {
		traits.SadExpressions = base.EmotionalTraits.SadExpressions
	}
	if len(traits.ConfusedExpressions) == 0 {
		traits.ConfusedExpressions = base.EmotionalTraits.ConfusedExpressions
	}
	return p
}
