package emotion

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
)

type fixedSource int

func (f fixedSource) IntN(n int) int { return int(f) % n }

func TestClassifyKeywords(t *testing.T) {
	cases := []struct {
		text string
		want Label
	}{
		{"谢谢你", Joy},
		{"我好喜欢这个", Joy},
		{"讨厌", Anger},
		{"这样不行", Anger},
		{"我很难过", Sadness},
		{"考试失败了", Sadness},
		{"今天天气如何", Thinking},
		{"", Thinking},
		{"   ", Thinking},
	}

	for _, tc := range cases {
		if got := Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	if got := Classify("谢谢，但我很讨厌这样"); got != Joy {
		t.Fatalf("joy should win over anger, got %s", got)
	}
	if got := Classify("讨厌失败"); got != Anger {
		t.Fatalf("anger should win over sadness, got %s", got)
	}
}

func TestPickPhraseReturnsCategoryMember(t *testing.T) {
	traits := persona.Default().EmotionalTraits
	c := NewClassifier(traits, WithSource(rand.New(rand.NewPCG(1, 2))))

	lists := map[Label][]string{
		Joy:      traits.JoyExpressions,
		Anger:    traits.AngerExpressions,
		Sadness:  traits.SadExpressions,
		Thinking: traits.ConfusedExpressions,
	}
	for label, phrases := range lists {
		for i := 0; i < 50; i++ {
			got := c.PickPhrase(label)
			if !slices.Contains(phrases, got) {
				t.Fatalf("PickPhrase(%s) = %q not in %v", label, got, phrases)
			}
		}
	}
}

func TestTagForPhrase(t *testing.T) {
	cases := map[string]Label{
		"啊啊啊！":    Joy,
		"太棒了！":    Thinking,
		"哼！":      Anger,
		"呜呜...":   Sadness,
		"唔...":    Thinking,
		"让我想想...": Thinking,
	}
	for phrase, want := range cases {
		if got := TagForPhrase(phrase); got != want {
			t.Errorf("TagForPhrase(%q) = %s, want %s", phrase, got, want)
		}
	}
}

func TestRespondTagModes(t *testing.T) {
	traits := persona.Default().EmotionalTraits

	// index 1 of the joy list is "太棒了！", which carries no joy marker
	byPhrase := NewClassifier(traits, WithSource(fixedSource(1)))
	phrase, tag := byPhrase.Respond("谢谢你")
	if phrase != "太棒了！" || tag != Thinking {
		t.Fatalf("phrase mode: got (%q, %s)", phrase, tag)
	}

	byCategory := NewClassifier(traits, WithSource(fixedSource(1)), WithTagMode(TagFromCategory))
	phrase, tag = byCategory.Respond("谢谢你")
	if phrase != "太棒了！" || tag != Joy {
		t.Fatalf("category mode: got (%q, %s)", phrase, tag)
	}
}

func TestPickPhraseEmptyListFallsBackToThinking(t *testing.T) {
	c := NewClassifier(persona.EmotionalTraits{ConfusedExpressions: []string{"诶？"}}, WithSource(fixedSource(0)))
	if got := c.PickPhrase(Joy); got != "诶？" {
		t.Fatalf("expected thinking phrase, got %q", got)
	}
}
