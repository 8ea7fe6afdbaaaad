package joblauncher

import (
	"context"

	"weatheretl/pkg/batch/job/core"
)

// JobLauncher はジョブ名とパラメータを受け取ってジョブを起動します。
type JobLauncher interface {
	Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)
}

// JobProvider はジョブ名から実行可能な Job を生成します。
// factory.JobFactory が実装します。
type JobProvider interface {
	CreateJob(jobName string) (core.Job, error)
}
