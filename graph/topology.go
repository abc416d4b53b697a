package graph

import "time"

// Topology is the declarative pipeline definition loaded from YAML.
// It lists the datasets, the nodes wired between them, and the gateway
// binding. The graph it describes may contain cycles; feedback loops
// (a node re-producing a dataset consumed by an earlier stage) are legal.
type Topology struct {
	// Name is the pipeline identifier.
	Name string `yaml:"name" validate:"required"`
	// Datasets declares every stream the nodes may reference.
	Datasets []DatasetDef `yaml:"datasets" validate:"required,min=1,dive"`
	// NodeDefaults supplies settings applied when a node omits its own.
	NodeDefaults NodeDefaults `yaml:"node_defaults,omitempty"`
	// Nodes defines the processing stages.
	Nodes []NodeDef `yaml:"nodes" validate:"required,min=1,dive"`
	// Gateway binds the HTTP entry point to the graph.
	Gateway GatewayDef `yaml:"gateway"`
}

// DatasetDef declares one named stream.
type DatasetDef struct {
	// Name is the dataset identifier, unique within the topology.
	Name string `yaml:"name" validate:"required"`
	// Entry marks a dataset fed from outside the graph (by the gateway).
	// Entry datasets are exempt from the producer requirement.
	Entry bool `yaml:"entry,omitempty"`
	// Backend selects the backing log: "memory" (default) or "kafka".
	Backend string `yaml:"backend,omitempty" validate:"omitempty,oneof=memory kafka"`
	// Topic overrides the Kafka topic name; defaults to the dataset name.
	Topic string `yaml:"topic,omitempty"`
}

// NodeDefaults holds fallback settings for node definitions.
type NodeDefaults struct {
	// CPU is the default fractional CPU weight.
	CPU float64 `yaml:"cpu,omitempty"`
	// PollWait bounds one input poll before the loop moves on.
	PollWait time.Duration `yaml:"poll_wait,omitempty"`
}

// NodeDef defines one processing stage.
type NodeDef struct {
	// ID is the node identifier, unique within the topology.
	ID string `yaml:"id" validate:"required"`
	// Implementation is the handler registry lookup key.
	Implementation string `yaml:"implementation" validate:"required"`
	// Inputs lists consumed datasets in polling order.
	Inputs []string `yaml:"inputs,omitempty"`
	// Outputs lists produced datasets.
	Outputs []string `yaml:"outputs,omitempty"`
	// ErrorOutput names the output dataset receiving forwarded step
	// failures. Empty means a step failure faults the node.
	ErrorOutput string `yaml:"error_output,omitempty"`
	// Interval is the timer period for nodes with no inputs.
	Interval time.Duration `yaml:"interval,omitempty"`
	// CPU is the fractional CPU weight. Informational only.
	CPU float64 `yaml:"cpu,omitempty"`
	// Params is the free-form parameter bag passed to the handler's Init.
	Params map[string]any `yaml:"params,omitempty"`
}

// GatewayDef binds the synchronous HTTP surface to graph datasets.
type GatewayDef struct {
	// Entry is the dataset the gateway appends inbound requests to.
	Entry string `yaml:"entry"`
	// Result is the terminal dataset carrying fulfilled responses.
	Result string `yaml:"result"`
	// Errors lists datasets whose records resolve a request as failed.
	Errors []string `yaml:"errors,omitempty"`
	// Timeout bounds how long a request waits for resolution.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// CleanupInterval is the correlation cache sweep period and
	// retention window.
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty"`
}
