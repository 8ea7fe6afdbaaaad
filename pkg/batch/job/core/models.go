package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブ実行の状態を表します。
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusStopped   JobStatus = "STOPPED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusAbandoned JobStatus = "ABANDONED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// IsFinished は JobStatus が終了状態かどうかを判定するヘルパーメソッドです。
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// ToExitStatus は JobStatus を対応する ExitStatus に変換します。
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus はジョブ/ステップの終了時の詳細なステータスを表します。
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
	ExitStatusNoOp      ExitStatus = "NO_OP"
)

// ExecutionContext はジョブやステップの状態を共有するためのキー-値ストアです。
type ExecutionContext map[string]any

// NewExecutionContext は空の ExecutionContext を作成します。
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

func (ec ExecutionContext) Put(key string, value any) {
	ec[key] = value
}

func (ec ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec[key]
	return v, ok
}

func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key].(string)
	return v, ok
}

// GetInt は int 値を取得します。JSON から復元した場合の float64 も受け付けます。
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	switch v := ec[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Copy は浅いコピーを返します。
func (ec ExecutionContext) Copy() ExecutionContext {
	out := make(ExecutionContext, len(ec))
	for k, v := range ec {
		out[k] = v
	}
	return out
}

// JobParameters はジョブ実行時のパラメータを保持する構造体です。
type JobParameters struct {
	Params map[string]any
}

// NewJobParameters は空の JobParameters を作成します。
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]any)}
}

func (p JobParameters) Put(key string, value any) {
	p.Params[key] = value
}

func (p JobParameters) GetString(key string) (string, bool) {
	v, ok := p.Params[key].(string)
	return v, ok
}

// JobExecution はジョブの単一の実行インスタンスを表す構造体です。
type JobExecution struct {
	ID               string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
}

// NewJobExecution は新しい JobExecution を STARTING 状態で作成します。
func NewJobExecution(jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.NewString(),
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
	}
}

// MarkAsStarted はジョブを STARTED 状態にします。
func (je *JobExecution) MarkAsStarted() {
	je.Status = BatchStatusStarted
	je.StartTime = time.Now()
	je.LastUpdated = je.StartTime
}

// MarkAsCompleted はジョブを COMPLETED 状態で終了させます。
func (je *JobExecution) MarkAsCompleted() {
	je.Status = BatchStatusCompleted
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// MarkAsFailed はジョブを FAILED 状態で終了させます。err が nil でなければ失敗として記録します。
func (je *JobExecution) MarkAsFailed(err error) {
	je.Status = BatchStatusFailed
	je.ExitStatus = ExitStatusFailed
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
	if err != nil {
		je.AddFailureException(err)
	}
}

// MarkAsStopped はジョブを STOPPED 状態で終了させます。
func (je *JobExecution) MarkAsStopped() {
	je.Status = BatchStatusStopped
	je.ExitStatus = ExitStatusStopped
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

func (je *JobExecution) AddFailureException(err error) {
	je.Failures = append(je.Failures, err)
}

// StepExecution はステップの単一の実行インスタンスを表す構造体です。
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution は新しい StepExecution を作成し、JobExecution に関連付けます。
func NewStepExecution(stepName string, jobExecution *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               uuid.NewString(),
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
	if jobExecution != nil {
		jobExecution.StepExecutions = append(jobExecution.StepExecutions, se)
	}
	return se
}

func (se *StepExecution) MarkAsStarted() {
	se.Status = BatchStatusStarted
	se.StartTime = time.Now()
	se.LastUpdated = se.StartTime
}

func (se *StepExecution) MarkAsCompleted() {
	se.Status = BatchStatusCompleted
	if se.ExitStatus == ExitStatusUnknown || se.ExitStatus == "" {
		se.ExitStatus = ExitStatusCompleted
	}
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
}

func (se *StepExecution) MarkAsFailed(err error) {
	se.Status = BatchStatusFailed
	se.ExitStatus = ExitStatusFailed
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
	if err != nil {
		se.AddFailureException(err)
	}
}

func (se *StepExecution) AddFailureException(err error) {
	se.Failures = append(se.Failures, err)
}

// SkipCount は読み込み・処理・書き込みでスキップされた件数の合計です。
func (se *StepExecution) SkipCount() int {
	return se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount
}

// Summary はログ出力用のカウンタ要約です。
func (se *StepExecution) Summary() string {
	return fmt.Sprintf("read=%d, write=%d, filter=%d, commit=%d, rollback=%d, skip(read/process/write)=%d/%d/%d",
		se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount,
		se.SkipReadCount, se.SkipProcessCount, se.SkipWriteCount)
}

// Transition はステップから次の要素への遷移ルールを定義します。
type Transition struct {
	On   string `yaml:"on"`
	To   string `yaml:"to,omitempty"`
	End  bool   `yaml:"end,omitempty"`
	Fail bool   `yaml:"fail,omitempty"`
	Stop bool   `yaml:"stop,omitempty"`
}

// TransitionRule は特定の遷移元要素からの単一の遷移ルールを定義します。
type TransitionRule struct {
	From       string
	Transition Transition
}
