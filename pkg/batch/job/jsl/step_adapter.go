package jsl

import (
	"fmt"
	"sort"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/job/component"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/step"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

const converterModule = "jsl_converter"

// ConvertJSLToCoreFlow は JSL の Flow 定義を core.FlowDefinition に変換します。
// registry は JSL で参照されるコンポーネントとリスナーのビルダーを保持します。
func ConvertJSLToCoreFlow(
	jslFlow Flow,
	registry *component.Registry,
	jobRepository repository.JobRepository,
	cfg *config.Config,
) (*core.FlowDefinition, error) {
	flowDef := core.NewFlowDefinition(jslFlow.StartElement)

	if _, ok := jslFlow.Elements[jslFlow.StartElement]; !ok {
		return nil, exception.NewBatchErrorf(converterModule, "フローの 'start-element' '%s' が 'elements' に見つかりません", jslFlow.StartElement)
	}

	// map の順序に依存しないよう ID 順に構築する
	ids := make([]string, 0, len(jslFlow.Elements))
	for id := range jslFlow.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		jslStep := jslFlow.Elements[id]
		jslStep.ID = id

		coreStep, err := buildStep(jslStep, registry, jobRepository, cfg)
		if err != nil {
			return nil, err
		}
		if err := flowDef.AddElement(id, coreStep); err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("フローにステップ '%s' の追加に失敗しました", id), err, false, false)
		}

		for _, t := range jslStep.Transitions {
			if err := validateTransition(id, t, jslFlow.Elements); err != nil {
				return nil, err
			}
			flowDef.AddTransitionRule(id, core.Transition{On: t.On, To: t.To, End: t.End, Fail: t.Fail, Stop: t.Stop})
		}
	}

	return flowDef, nil
}

func buildStep(jslStep Step, registry *component.Registry, jobRepository repository.JobRepository, cfg *config.Config) (core.Step, error) {
	id := jslStep.ID

	stepListeners, err := buildStepListeners(jslStep.Listeners, registry, cfg)
	if err != nil {
		return nil, err
	}
	promotion := toPromotion(jslStep.ExecutionContextPromotion)

	switch {
	case jslStep.Chunk != nil:
		if jslStep.Reader.Ref == "" || jslStep.Processor.Ref == "" || jslStep.Writer.Ref == "" {
			return nil, exception.NewBatchErrorf(converterModule, "チャンクステップ '%s' には reader, processor, writer が全て必要です", id)
		}
		r, err := component.Build[core.ItemReader[any]](registry, jslStep.Reader.Ref, cfg, jobRepository, jslStep.Reader.Properties)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("ステップ '%s' のリーダー構築に失敗しました", id), err, false, false)
		}
		p, err := component.Build[core.ItemProcessor[any, any]](registry, jslStep.Processor.Ref, cfg, jobRepository, jslStep.Processor.Properties)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("ステップ '%s' のプロセッサ構築に失敗しました", id), err, false, false)
		}
		w, err := component.Build[core.ItemWriter[any]](registry, jslStep.Writer.Ref, cfg, jobRepository, jslStep.Writer.Properties)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("ステップ '%s' のライター構築に失敗しました", id), err, false, false)
		}
		skipListeners, err := buildSkipListeners(jslStep.SkipListeners, registry, cfg)
		if err != nil {
			return nil, err
		}

		chunkSize := jslStep.Chunk.ItemCount
		if chunkSize <= 0 {
			chunkSize = cfg.Batch.ChunkSize
		}
		logger.Debugf("チャンクステップ '%s' を構築しました。chunk=%d, skipLimit=%d", id, chunkSize, cfg.Batch.ItemSkip.SkipLimit)
		return step.NewChunkStep[any, any](id, r, p, w, chunkSize, cfg.Batch.ItemSkip.SkipLimit, jobRepository, stepListeners, skipListeners, promotion), nil

	case jslStep.Tasklet.Ref != "":
		t, err := component.Build[core.Tasklet](registry, jslStep.Tasklet.Ref, cfg, jobRepository, jslStep.Tasklet.Properties)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("ステップ '%s' のタスクレット構築に失敗しました", id), err, false, false)
		}
		logger.Debugf("タスクレットステップ '%s' を構築しました。", id)
		return step.NewTaskletStep(id, t, jobRepository, stepListeners, promotion), nil

	default:
		return nil, exception.NewBatchErrorf(converterModule, "ステップ '%s' はチャンクまたはタスクレットのいずれかを定義する必要があります", id)
	}
}

func buildStepListeners(refs []ComponentRef, registry *component.Registry, cfg *config.Config) ([]core.StepExecutionListener, error) {
	var listeners []core.StepExecutionListener
	for _, ref := range refs {
		builder, ok := registry.StepListeners[ref.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf(converterModule, "StepExecutionListener '%s' のビルダーが登録されていません", ref.Ref)
		}
		l, err := builder(cfg)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("StepExecutionListener '%s' のビルドに失敗しました", ref.Ref), err, false, false)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func buildSkipListeners(refs []ComponentRef, registry *component.Registry, cfg *config.Config) ([]core.SkipListener, error) {
	var listeners []core.SkipListener
	for _, ref := range refs {
		builder, ok := registry.SkipListeners[ref.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf(converterModule, "SkipListener '%s' のビルダーが登録されていません", ref.Ref)
		}
		l, err := builder(cfg)
		if err != nil {
			return nil, exception.NewBatchError(converterModule, fmt.Sprintf("SkipListener '%s' のビルドに失敗しました", ref.Ref), err, false, false)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func toPromotion(p *ExecutionContextPromotion) *step.ExecutionContextPromotion {
	if p == nil || len(p.Keys) == 0 {
		return nil
	}
	return &step.ExecutionContextPromotion{Keys: p.Keys, JobLevelKeys: p.JobLevelKeys}
}
