package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/di"
)

// DatasetInfo describes one durable dataset for the startup summary.
type DatasetInfo struct {
	Name    string
	Backend string
	Entry   bool
}

// NodeInfo describes one pipeline node for the startup summary.
type NodeInfo struct {
	ID             string
	Implementation string
	Inputs         []string
	Outputs        []string
}

// RouteInfo describes a registered HTTP route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// Summary tracks and displays the service bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	datasets        []DatasetInfo
	nodes           []NodeInfo
	routes          []RouteInfo
}

// NewSummary creates a bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackDataset records a dataset backing the pipeline.
func (s *Summary) TrackDataset(name, backend string, entry bool) {
	s.datasets = append(s.datasets, DatasetInfo{Name: name, Backend: backend, Entry: entry})
}

// TrackNode records a pipeline node.
func (s *Summary) TrackNode(id, implementation string, inputs, outputs []string) {
	s.nodes = append(s.nodes, NodeInfo{ID: id, Implementation: implementation, Inputs: inputs, Outputs: outputs})
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{Method: method, Path: path, Handler: handler})
}

// Display prints the bootstrap summary including live health from the
// component registry and the container's registrations.
func (s *Summary) Display(registry *component.Registry, container di.Container) {
	fmt.Printf("\n")
	fmt.Printf("🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.datasets) > 0 {
		fmt.Printf("📊 Datasets\n")
		for i, d := range s.datasets {
			prefix := treePrefix(i, len(s.datasets))
			marker := ""
			if d.Entry {
				marker = " [entry]"
			}
			fmt.Printf("   %s %s (%s)%s\n", prefix, d.Name, d.Backend, marker)
		}
		fmt.Printf("\n")
	}

	if len(s.nodes) > 0 {
		fmt.Printf("⚙️  Nodes\n")
		for i, n := range s.nodes {
			prefix := treePrefix(i, len(s.nodes))
			fmt.Printf("   %s %s [%s] %s → %s\n", prefix, n.ID, n.Implementation,
				flowList(n.Inputs), flowList(n.Outputs))
		}
		fmt.Printf("\n")
	}

	if len(s.routes) > 0 {
		fmt.Printf("🌐 Routes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			prefix := treePrefix(i, len(s.routes))
			fmt.Printf("   %s %-7s %s → %s\n", prefix, r.Method, r.Path, r.Handler)
		}
		fmt.Printf("\n")
	}

	if container != nil {
		regs := container.Registrations()
		if len(regs) > 0 {
			fmt.Printf("🧩 Container\n")
			for i, reg := range regs {
				prefix := treePrefix(i, len(regs))
				state := "pending"
				if reg.Initialized {
					state = "ready"
				}
				fmt.Printf("   %s %s (%s, %s)\n", prefix, reg.Key, reg.Mode, state)
			}
			fmt.Printf("\n")
		}
	}

	if registry != nil {
		results := registry.HealthAll(context.Background())
		if len(results) > 0 {
			fmt.Printf("🏥 Health Check\n")
			healthy := 0
			for i, h := range results {
				prefix := treePrefix(i, len(results))
				msg := ""
				if h.Message != "" {
					msg = fmt.Sprintf(" — %s", h.Message)
				}
				fmt.Printf("   %s %s %s: %s%s\n", prefix, healthIcon(h.Status), h.Name,
					strings.ToLower(string(h.Status)), msg)
				if h.Status == component.StatusHealthy {
					healthy++
				}
			}
			if healthy == len(results) {
				fmt.Printf("\n✅ All components healthy (%d/%d)\n", healthy, len(results))
			} else {
				fmt.Printf("\n⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(results))
			}
		}
	}

	fmt.Printf("\n")
}

func treePrefix(i, total int) string {
	if i == total-1 {
		return "└──"
	}
	return "├──"
}

func flowList(names []string) string {
	if len(names) == 0 {
		return "∅"
	}
	return strings.Join(names, ",")
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
