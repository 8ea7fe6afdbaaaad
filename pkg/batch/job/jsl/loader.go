package jsl

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// LoadJSLDefinitionFromBytes は単一のJSL YAMLのバイトデータからジョブ定義をロードし、構造を検証します。
func LoadJSLDefinitionFromBytes(data []byte) (Job, error) {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return Job{}, exception.NewBatchError("jsl_loader", "JSL ファイルのパースに失敗しました", err, false, false)
	}

	if jobDef.ID == "" {
		return Job{}, exception.NewBatchErrorf("jsl_loader", "JSL ファイルに 'id' が定義されていません")
	}
	if jobDef.Name == "" {
		return Job{}, exception.NewBatchErrorf("jsl_loader", "JSL ジョブ '%s' に 'name' が定義されていません", jobDef.ID)
	}
	if jobDef.Flow.StartElement == "" {
		return Job{}, exception.NewBatchErrorf("jsl_loader", "JSL ジョブ '%s' のフローに 'start-element' が定義されていません", jobDef.ID)
	}
	if len(jobDef.Flow.Elements) == 0 {
		return Job{}, exception.NewBatchErrorf("jsl_loader", "JSL ジョブ '%s' のフローに 'elements' が定義されていません", jobDef.ID)
	}
	if _, ok := jobDef.Flow.Elements[jobDef.Flow.StartElement]; !ok {
		return Job{}, exception.NewBatchErrorf("jsl_loader", "フローの 'start-element' '%s' が 'elements' に見つかりません", jobDef.Flow.StartElement)
	}

	for id, step := range jobDef.Flow.Elements {
		if step.ID != "" && step.ID != id {
			return Job{}, exception.NewBatchErrorf("jsl_loader", "ステップ '%s' のIDがマップのキー '%s' と一致しません", step.ID, id)
		}
		step.ID = id
		jobDef.Flow.Elements[id] = step
		for _, t := range step.Transitions {
			if err := validateTransition(id, t, jobDef.Flow.Elements); err != nil {
				return Job{}, err
			}
		}
	}

	logger.Infof("JSL ジョブ '%s' をロードしました。ステップ数: %d", jobDef.ID, len(jobDef.Flow.Elements))
	return jobDef, nil
}

// validateTransition validates a single transition rule.
func validateTransition(fromElementID string, t Transition, allElements map[string]Step) error {
	if t.On == "" {
		return exception.NewBatchErrorf("jsl_loader", "フロー要素 '%s' の遷移ルールに 'on' が定義されていません", fromElementID)
	}

	exclusiveCount := 0
	for _, set := range []bool{t.End, t.Fail, t.Stop, t.To != ""} {
		if set {
			exclusiveCount++
		}
	}
	if exclusiveCount == 0 {
		return exception.NewBatchErrorf("jsl_loader", "フロー要素 '%s' の遷移ルール (on: '%s') に 'to', 'end', 'fail', 'stop' のいずれも定義されていません", fromElementID, t.On)
	}
	if exclusiveCount > 1 {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("フロー要素 '%s' の遷移ルール (on: '%s') は 'to', 'end', 'fail', 'stop' のうち複数定義されています。これらは排他的です。", fromElementID, t.On), nil, false, false)
	}

	if t.To != "" {
		if _, ok := allElements[t.To]; !ok {
			return exception.NewBatchErrorf("jsl_loader", "フロー要素 '%s' の遷移ルール (on: '%s') の 'to' で指定された要素 '%s' が見つかりません", fromElementID, t.On, t.To)
		}
	}
	return nil
}
