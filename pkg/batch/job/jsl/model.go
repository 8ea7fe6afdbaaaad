package jsl

// Job represents the top-level structure of a JSL file.
type Job struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Flow        Flow           `yaml:"flow"`
	Listeners   []ComponentRef `yaml:"listeners,omitempty"`
}

// Flow represents a sequence of steps.
type Flow struct {
	StartElement string          `yaml:"start-element"`
	Elements     map[string]Step `yaml:"elements"`
}

// Step represents a single processing unit within a job.
// JSR352では、ステップはチャンク指向またはTasklet指向のいずれかです。
// 両方を同時に持つことはできません。
type Step struct {
	ID                        string                     `yaml:"id"`
	Description               string                     `yaml:"description,omitempty"`
	Reader                    ComponentRef               `yaml:"reader,omitempty"`
	Processor                 ComponentRef               `yaml:"processor,omitempty"`
	Writer                    ComponentRef               `yaml:"writer,omitempty"`
	Chunk                     *Chunk                     `yaml:"chunk,omitempty"`
	Tasklet                   ComponentRef               `yaml:"tasklet,omitempty"`
	Transitions               []Transition               `yaml:"transitions,omitempty"`
	Listeners                 []ComponentRef             `yaml:"listeners,omitempty"`
	SkipListeners             []ComponentRef             `yaml:"skip-listeners,omitempty"`
	ExecutionContextPromotion *ExecutionContextPromotion `yaml:"execution-context-promotion,omitempty"`
}

// ComponentRef refers to a registered component (reader, processor, writer, tasklet, listener).
type ComponentRef struct {
	Ref        string            `yaml:"ref"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Chunk defines chunk-oriented processing properties for a step.
// ItemCount が 0 の場合は batch.chunk_size が使われます。
type Chunk struct {
	ItemCount int `yaml:"item-count"`
}

// Transition defines the next element to execute based on an exit status.
type Transition struct {
	On   string `yaml:"on"`             // The exit status (e.g., "COMPLETED", "FAILED", "*")
	To   string `yaml:"to,omitempty"`   // The ID of the next step
	End  bool   `yaml:"end,omitempty"`  // If true, ends the job execution
	Fail bool   `yaml:"fail,omitempty"` // If true, fails the job execution
	Stop bool   `yaml:"stop,omitempty"` // If true, stops the job execution
}

// ExecutionContextPromotion は StepExecutionContext から JobExecutionContext へのプロモーション設定を定義します。
type ExecutionContextPromotion struct {
	Keys         []string          `yaml:"keys,omitempty"`
	JobLevelKeys map[string]string `yaml:"job-level-keys,omitempty"`
}
