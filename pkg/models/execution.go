// Package models holds the declarative data model of a crew project:
// the execution plan, its units, and the benchmark and validation records.
package models

// Inputs are the caller-supplied external input values of one run, in the
// order they were supplied or declared.
type Inputs = OrderedMap[string]

// ExecutionConfig is the declared plan loaded from execution.yaml.
type ExecutionConfig struct {
	// Crews maps unit name to its configuration, in declaration order.
	Crews OrderedMap[*UnitConfig] `yaml:"crews"`
	// Settings holds global run settings.
	Settings Settings `yaml:"settings"`
	// UserInputs declares the external inputs the plan accepts.
	UserInputs OrderedMap[InputSpec] `yaml:"user_inputs"`
}

// Settings are global execution settings.
type Settings struct {
	// OutputResults enables writing unit results to the output directory.
	// Without it results are surfaced but never persisted, so nothing is cached.
	OutputResults bool `yaml:"output_results"`
}

// InputSpec declares one external input.
type InputSpec struct {
	Title    string   `yaml:"title"`
	Optional bool     `yaml:"optional"`
	Enum     []string `yaml:"enum"`
}

// UnitConfig is one schedulable crew.
type UnitConfig struct {
	// Agents maps agent name to its declaration.
	Agents OrderedMap[AgentConfig] `yaml:"agents"`
	// Tasks maps task name to its declaration. Tasks run in declaration order.
	Tasks OrderedMap[TaskConfig] `yaml:"tasks"`
	// DependsOn lists units that must complete before this one.
	DependsOn []string `yaml:"depends_on"`
	// Context maps a variable name to a context file reference.
	Context OrderedMap[string] `yaml:"context"`
	// OutputNamingTemplate names the unit's output file; it is interpolated.
	OutputNamingTemplate string `yaml:"output_naming_template"`
	// ValidateResults is the default comparison target for validation.
	ValidateResults string `yaml:"validate_results"`
}

// AgentConfig declares one agent of a crew. String fields are templates.
type AgentConfig struct {
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
}

// TaskConfig declares one task of a crew. String fields are templates.
type TaskConfig struct {
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Tools          []string `yaml:"tools"`
	Agent          string   `yaml:"agent"`
}

// Unit returns the named unit, or nil if it is not declared.
func (c *ExecutionConfig) Unit(name string) *UnitConfig {
	u, ok := c.Crews.Get(name)
	if !ok {
		return nil
	}
	if u == nil {
		return &UnitConfig{}
	}
	return u
}
