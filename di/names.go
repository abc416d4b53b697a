package di

// ServiceNames defines the well-known component keys a dream pipeline
// service registers during bootstrap.
type ServiceNames struct {
	Config       string
	Logger       string
	Topology     string
	Graph        string
	Cache        string
	Gateway      string
	Resolver     string
	NodeRegistry string
}

// Names contains the component keys used by cmd wiring.
var Names = ServiceNames{
	Config:       "config",
	Logger:       "logger",
	Topology:     "topology",
	Graph:        "graph",
	Cache:        "correlation_cache",
	Gateway:      "gateway",
	Resolver:     "gateway_resolver",
	NodeRegistry: "node_registry",
}
