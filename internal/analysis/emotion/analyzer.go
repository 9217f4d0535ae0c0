package emotion

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
)

// Label 表示助手消息上的情绪标签。
type Label string

const (
	Joy      Label = "joy"
	Anger    Label = "anger"
	Sadness  Label = "sadness"
	Thinking Label = "thinking"
)

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	switch l {
	case Joy, Anger, Sadness, Thinking:
		return true
	default:
		return false
	}
}

// TagMode selects how the stored emotion tag is derived.
type TagMode int

const (
	// TagFromPhrase re-derives the tag from the chosen phrase by substring markers.
	TagFromPhrase TagMode = iota
	// TagFromCategory uses the classified category directly.
	TagFromCategory
)

// Source is the random source used to pick exemplar phrases.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// 关键词按优先级排列：开心 > 生气 > 难过，均未命中时为思考。
var keywordRules = []struct {
	label   Label
	pattern *regexp.Regexp
}{
	{Joy, regexp.MustCompile(`(谢谢|感谢|棒|好|优秀|开心|喜欢)`)},
	{Anger, regexp.MustCompile(`(生气|讨厌|不行|错|差)`)},
	{Sadness, regexp.MustCompile(`(难过|伤心|痛苦|失败)`)},
}

// 从前缀短语反推标签时使用的子串。
var phraseMarkers = []struct {
	label  Label
	marker string
}{
	{Joy, "啊啊啊"},
	{Anger, "哼"},
	{Sadness, "呜呜"},
}

// Classifier maps user text to a label and picks a matching exemplar phrase.
type Classifier struct {
	phrases map[Label][]string
	rnd     Source
	mode    TagMode
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithSource injects the random source.
func WithSource(src Source) Option {
	return func(c *Classifier) {
		if src != nil {
			c.rnd = src
		}
	}
}

// WithTagMode selects the tag derivation mode.
func WithTagMode(mode TagMode) Option {
	return func(c *Classifier) {
		c.mode = mode
	}
}

// NewClassifier builds a classifier from a persona's emotional traits.
func NewClassifier(traits persona.EmotionalTraits, opts ...Option) *Classifier {
	c := &Classifier{
		phrases: map[Label][]string{
			Joy:      append([]string(nil), traits.JoyExpressions...),
			Anger:    append([]string(nil), traits.AngerExpressions...),
			Sadness:  append([]string(nil), traits.SadExpressions...),
			Thinking: append([]string(nil), traits.ConfusedExpressions...),
		},
		rnd: globalSource{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the first matching label in priority order, Thinking otherwise.
func Classify(text string) Label {
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(text) {
			return rule.label
		}
	}
	return Thinking
}

// Classify is the method form of the package-level Classify.
func (c *Classifier) Classify(text string) Label {
	return Classify(text)
}

// Phrases returns a copy of the exemplar list for label.
func (c *Classifier) Phrases(label Label) []string {
	return append([]string(nil), c.phrases[label]...)
}

// PickPhrase selects uniformly among the label's exemplar phrases.
func (c *Classifier) PickPhrase(label Label) string {
	phrases := c.phrases[label]
	if len(phrases) == 0 {
		phrases = c.phrases[Thinking]
	}
	if len(phrases) == 0 {
		return ""
	}
	return phrases[c.rnd.IntN(len(phrases))]
}

// TagForPhrase re-derives a label from the phrase text alone.
func TagForPhrase(phrase string) Label {
	for _, m := range phraseMarkers {
		if strings.Contains(phrase, m.marker) {
			return m.label
		}
	}
	return Thinking
}

// Respond classifies text, picks a prefix phrase and returns the tag to store.
func (c *Classifier) Respond(text string) (string, Label) {
	label := c.Classify(text)
	phrase := c.PickPhrase(label)
	if c.mode == TagFromCategory {
		return phrase, label
	}
	return phrase, TagForPhrase(phrase)
}
