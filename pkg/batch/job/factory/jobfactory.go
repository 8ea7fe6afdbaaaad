package factory

import (
	"fmt"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/job/component"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/job/jsl"
	"weatheretl/pkg/batch/job/runner"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// JobFactory は JSL 定義と登録済みコンポーネントから Job オブジェクトを生成するためのファクトリです。
type JobFactory struct {
	config        *config.Config
	jobRepository repository.JobRepository
	registry      *component.Registry
	definitions   map[string]jsl.Job
}

// NewJobFactory は新しい JobFactory のインスタンスを作成します。
func NewJobFactory(cfg *config.Config, repo repository.JobRepository) *JobFactory {
	return &JobFactory{
		config:        cfg,
		jobRepository: repo,
		registry:      component.NewRegistry(),
		definitions:   make(map[string]jsl.Job),
	}
}

// Registry はコンポーネントとリスナーの登録先を返します。
func (f *JobFactory) Registry() *component.Registry {
	return f.registry
}

// RegisterJobDefinition はロード済みの JSL ジョブ定義を ID で登録します。
func (f *JobFactory) RegisterJobDefinition(jobDef jsl.Job) error {
	if _, exists := f.definitions[jobDef.ID]; exists {
		return exception.NewBatchErrorf("job_factory", "JSL ジョブID '%s' が重複しています", jobDef.ID)
	}
	f.definitions[jobDef.ID] = jobDef
	logger.Debugf("JobFactory: JSL ジョブ '%s' を登録しました。", jobDef.ID)
	return nil
}

// CreateJob は JSL 定義からフローを構築し、FlowJob を返します。
func (f *JobFactory) CreateJob(jobName string) (core.Job, error) {
	logger.Debugf("JobFactory で Job '%s' の作成を試みます。", jobName)

	jslJob, ok := f.definitions[jobName]
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "指定された Job '%s' のJSL定義が見つかりません", jobName)
	}

	coreFlow, err := jsl.ConvertJSLToCoreFlow(jslJob.Flow, f.registry, f.jobRepository, f.config)
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("JSL ジョブ '%s' のフロー変換に失敗しました", jobName), err, false, false)
	}

	var jobListeners []core.JobExecutionListener
	for _, listenerRef := range jslJob.Listeners {
		builder, found := f.registry.JobListeners[listenerRef.Ref]
		if !found {
			return nil, exception.NewBatchErrorf("job_factory", "JobExecutionListener '%s' のビルダーが登録されていません", listenerRef.Ref)
		}
		listenerInstance, err := builder(f.config)
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("JobExecutionListener '%s' のビルドに失敗しました", listenerRef.Ref), err, false, false)
		}
		jobListeners = append(jobListeners, listenerInstance)
	}

	return runner.NewFlowJob(jslJob.ID, coreFlow, f.jobRepository, jobListeners), nil
}
