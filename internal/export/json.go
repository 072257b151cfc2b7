package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rock-core/tools-syskit-sub003/internal/merge"
	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// ReductionExport is the top-level JSON export structure.
type ReductionExport struct {
	Name            string             `json:"name"`
	ExportedAt      string             `json:"exportedAt"`
	Passes          int                `json:"passes"`
	InstancesBefore int                `json:"instancesBefore"`
	InstancesAfter  int                `json:"instancesAfter"`
	Merges          []MergeExport      `json:"merges,omitempty"`
	Leftovers       []string           `json:"leftovers,omitempty"`
	Tasks           []TaskExport       `json:"tasks"`
	Connections     []ConnectionExport `json:"connections,omitempty"`
}

// MergeExport describes one realized merge.
type MergeExport struct {
	Removed  string `json:"removed"`
	Survivor string `json:"survivor"`
}

// TaskExport describes a surviving task instance.
type TaskExport struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiredModel string `json:"requiredModel"`
	ConcreteModel string `json:"concreteModel,omitempty"`
	Deployment    string `json:"deployment,omitempty"`
	State         string `json:"state"`
	DeviceName    string `json:"deviceName,omitempty"`
}

// ConnectionExport describes a dataflow edge of the reduced network.
type ConnectionExport struct {
	Source     string            `json:"source"`
	SourcePort string            `json:"sourcePort"`
	Sink       string            `json:"sink"`
	SinkPort   string            `json:"sinkPort"`
	Policy     map[string]string `json:"policy,omitempty"`
}

// BuildExport assembles a ReductionExport from the reduced network and the
// engine report.
func BuildExport(g *network.Graph, report *merge.Report) *ReductionExport {
	out := &ReductionExport{
		Name:            g.Name(),
		ExportedAt:      time.Now().UTC().Format(time.RFC3339),
		Passes:          report.Passes,
		InstancesBefore: report.InstancesBefore,
		InstancesAfter:  report.InstancesAfter,
		Leftovers:       report.Leftovers,
	}

	removed := make([]string, 0, len(report.Merged))
	for id := range report.Merged {
		removed = append(removed, id)
	}
	sort.Strings(removed)
	for _, id := range removed {
		out.Merges = append(out.Merges, MergeExport{Removed: id, Survivor: report.Merged[id]})
	}

	for _, t := range g.Tasks() {
		out.Tasks = append(out.Tasks, TaskExport{
			ID:            t.ID,
			Name:          t.Name,
			RequiredModel: t.RequiredModel,
			ConcreteModel: t.ConcreteModel,
			Deployment:    t.Deployment,
			State:         string(t.State),
			DeviceName:    t.DeviceName,
		})
	}

	conns := g.Connections()
	sort.Slice(conns, func(i, j int) bool {
		a, b := conns[i], conns[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.SinkID != b.SinkID {
			return a.SinkID < b.SinkID
		}
		return a.SinkPort < b.SinkPort
	})
	for _, c := range conns {
		out.Connections = append(out.Connections, ConnectionExport{
			Source:     c.SourceID,
			SourcePort: c.SourcePort,
			Sink:       c.SinkID,
			SinkPort:   c.SinkPort,
			Policy:     c.Policy,
		})
	}

	return out
}

// WriteJSON serializes the export to the given path, creating directories
// as needed.
func WriteJSON(path string, export *ReductionExport) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
