package core

import (
	"fmt"
)

// AnyExitStatus はどの ExitStatus にも一致する遷移条件です。
const AnyExitStatus = "*"

// FlowDefinition はジョブの実行フロー全体を定義します。
type FlowDefinition struct {
	StartElement    string
	Elements        map[string]FlowElement
	TransitionRules []TransitionRule
}

// NewFlowDefinition は開始要素を指定して空のフローを作成します。
func NewFlowDefinition(startElement string) *FlowDefinition {
	return &FlowDefinition{
		StartElement: startElement,
		Elements:     make(map[string]FlowElement),
	}
}

// AddElement はフロー要素を登録します。ID が重複する場合はエラーです。
func (f *FlowDefinition) AddElement(id string, element FlowElement) error {
	if _, exists := f.Elements[id]; exists {
		return fmt.Errorf("フロー要素 '%s' は既に登録されています", id)
	}
	f.Elements[id] = element
	return nil
}

// AddTransitionRule は遷移ルールを追加します。
func (f *FlowDefinition) AddTransitionRule(from string, transition Transition) {
	f.TransitionRules = append(f.TransitionRules, TransitionRule{From: from, Transition: transition})
}

// GetTransitionRule は遷移元と ExitStatus に一致するルールを返します。
// 完全一致を優先し、なければワイルドカード "*" のルールを返します。
func (f *FlowDefinition) GetTransitionRule(from string, exitStatus ExitStatus) (TransitionRule, bool) {
	var wildcard *TransitionRule
	for i := range f.TransitionRules {
		rule := f.TransitionRules[i]
		if rule.From != from {
			continue
		}
		if rule.Transition.On == string(exitStatus) {
			return rule, true
		}
		if rule.Transition.On == AnyExitStatus && wildcard == nil {
			wildcard = &f.TransitionRules[i]
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return TransitionRule{}, false
}
