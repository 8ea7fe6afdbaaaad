package component

import (
	"fmt"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/logger"
)

// ComponentBuilder は、特定のコンポーネント（Reader, Processor, Writer, Tasklet）を生成するための関数型です。
// 依存関係 (config, repo, properties など) を受け取り、生成されたコンポーネントとエラーを返します。
// ジェネリックインターフェースを返すため、any を使用します。
type ComponentBuilder func(cfg *config.Config, repo repository.JobRepository, properties map[string]string) (any, error)

// StepListenerBuilder は StepExecutionListener を生成するための関数型です。
type StepListenerBuilder func(cfg *config.Config) (core.StepExecutionListener, error)

// SkipListenerBuilder は SkipListener を生成するための関数型です。
type SkipListenerBuilder func(cfg *config.Config) (core.SkipListener, error)

// JobListenerBuilder は JobExecutionListener を生成するための関数型です。
type JobListenerBuilder func(cfg *config.Config) (core.JobExecutionListener, error)

// Registry は JSL の ref 名からビルダーを引くための登録簿です。
type Registry struct {
	Components    map[string]ComponentBuilder
	StepListeners map[string]StepListenerBuilder
	SkipListeners map[string]SkipListenerBuilder
	JobListeners  map[string]JobListenerBuilder
}

func NewRegistry() *Registry {
	return &Registry{
		Components:    make(map[string]ComponentBuilder),
		StepListeners: make(map[string]StepListenerBuilder),
		SkipListeners: make(map[string]SkipListenerBuilder),
		JobListeners:  make(map[string]JobListenerBuilder),
	}
}

func (r *Registry) RegisterComponent(name string, builder ComponentBuilder) {
	r.Components[name] = builder
	logger.Debugf("コンポーネントビルダー '%s' を登録しました。", name)
}

func (r *Registry) RegisterStepListener(name string, builder StepListenerBuilder) {
	r.StepListeners[name] = builder
	logger.Debugf("StepExecutionListener ビルダー '%s' を登録しました。", name)
}

func (r *Registry) RegisterSkipListener(name string, builder SkipListenerBuilder) {
	r.SkipListeners[name] = builder
	logger.Debugf("SkipListener ビルダー '%s' を登録しました。", name)
}

func (r *Registry) RegisterJobListener(name string, builder JobListenerBuilder) {
	r.JobListeners[name] = builder
	logger.Debugf("JobExecutionListener ビルダー '%s' を登録しました。", name)
}

// Build は ref 名のコンポーネントを生成し、型 T にアサーションして返します。
func Build[T any](r *Registry, ref string, cfg *config.Config, repo repository.JobRepository, properties map[string]string) (T, error) {
	var zero T
	builder, ok := r.Components[ref]
	if !ok {
		return zero, fmt.Errorf("コンポーネント '%s' のビルダーが登録されていません", ref)
	}
	instance, err := builder(cfg, repo, properties)
	if err != nil {
		return zero, fmt.Errorf("コンポーネント '%s' のビルドに失敗しました: %w", ref, err)
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("コンポーネント '%s' の型が不正です (期待: %T, 実際: %T)", ref, zero, instance)
	}
	return typed, nil
}
