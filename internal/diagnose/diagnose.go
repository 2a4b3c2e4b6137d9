// Package diagnose classifies the component attribution of a returned
// control collection and renders the human-readable report. Purely a
// reporting layer: it never retries and never touches the transport.
package diagnose

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/probekit/mcpprobe/internal/wire"
)

const (
	// SentinelComponent is the value a defective server stamps on every
	// control instead of per-item attribution.
	SentinelComponent = "All Components"

	// MissingComponent is rendered in the preview when a record carries no
	// component field at all.
	MissingComponent = "MISSING!"

	// unknownComponent stands in for absent components when computing
	// diversity, so records missing the field still count as one bucket.
	unknownComponent = "Unknown"

	// previewCount is how many records the report previews.
	previewCount = 3

	// sampleCount is how many distinct components a success report names.
	sampleCount = 5
)

// Outcome classifies what the control collection revealed.
type Outcome int

const (
	// OutcomeDistinct means more than one distinct component: controls carry
	// individual attribution.
	OutcomeDistinct Outcome = iota

	// OutcomeUniformSentinel means every control claims the sentinel
	// "All Components" value, the known product defect.
	OutcomeUniformSentinel

	// OutcomeUniform means every control carries the same non-sentinel
	// component.
	OutcomeUniform

	// OutcomeEmpty means the server returned no controls at all.
	OutcomeEmpty
)

// String returns a short tag for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeDistinct:
		return "distinct"
	case OutcomeUniformSentinel:
		return "uniform_sentinel"
	case OutcomeUniform:
		return "uniform"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Healthy reports whether the outcome is the one the probe hopes for.
func (o Outcome) Healthy() bool {
	return o == OutcomeDistinct
}

// MarshalJSON encodes the outcome as its string tag.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// ControlPreview is one previewed record in the diagnosis.
type ControlPreview struct {
	Name      string `json:"name"`
	Component string `json:"component"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

// Diagnosis is the result of evaluating a control collection.
type Diagnosis struct {
	Outcome    Outcome          `json:"outcome"`
	Total      int              `json:"total"`
	Preview    []ControlPreview `json:"preview"`
	Components []string         `json:"components"`
}

// UniqueComponents returns the number of distinct component values.
func (d *Diagnosis) UniqueComponents() int {
	return len(d.Components)
}

// Evaluate computes the diagnosis for a control collection: total count, a
// preview of the first records, the distinct component set, and the
// three-way outcome classification.
func Evaluate(controls []wire.Control) *Diagnosis {
	d := &Diagnosis{Total: len(controls)}

	for i, ctrl := range controls {
		if i >= previewCount {
			break
		}

		preview := ControlPreview{
			Name:      ctrl.Name,
			Component: ctrl.Component,
			Type:      ctrl.Type,
			Value:     ctrl.Value,
		}

		if !ctrl.HasComponent() {
			preview.Component = MissingComponent
		}

		if preview.Type == "" {
			preview.Type = "unknown"
		}

		d.Preview = append(d.Preview, preview)
	}

	seen := make(map[string]struct{}, len(controls))

	for _, ctrl := range controls {
		component := ctrl.Component
		if !ctrl.HasComponent() {
			component = unknownComponent
		}

		if _, ok := seen[component]; !ok {
			seen[component] = struct{}{}
			d.Components = append(d.Components, component)
		}
	}

	sort.Strings(d.Components)

	switch {
	case len(controls) == 0:
		d.Outcome = OutcomeEmpty
	case len(d.Components) > 1:
		d.Outcome = OutcomeDistinct
	case d.Components[0] == SentinelComponent:
		d.Outcome = OutcomeUniformSentinel
	default:
		d.Outcome = OutcomeUniform
	}

	return d
}

// Render writes the human-readable diagnosis report.
func (d *Diagnosis) Render(w io.Writer) {
	fmt.Fprintf(w, "Total controls: %d\n\n", d.Total)

	if len(d.Preview) > 0 {
		fmt.Fprintf(w, "First %d controls:\n", len(d.Preview))

		for _, p := range d.Preview {
			fmt.Fprintf(w, "- %s\n", p.Name)
			fmt.Fprintf(w, "  Component: %s\n", p.Component)
			fmt.Fprintf(w, "  Type: %s\n", p.Type)

			if p.Value != nil {
				fmt.Fprintf(w, "  Value: %v\n\n", p.Value)
			} else {
				fmt.Fprintf(w, "  Value: N/A\n\n")
			}
		}
	}

	fmt.Fprintf(w, "Unique components: %d\n", d.UniqueComponents())

	switch d.Outcome {
	case OutcomeDistinct:
		fmt.Fprintln(w, "SUCCESS: controls have individual component names")

		samples := d.Components
		if len(samples) > sampleCount {
			samples = samples[:sampleCount]
		}

		fmt.Fprintf(w, "Sample components: %s\n", strings.Join(samples, ", "))

	case OutcomeUniformSentinel:
		fmt.Fprintf(w, "ISSUE: all controls show %q as component\n", SentinelComponent)
		fmt.Fprintln(w, "This prevents identifying which component owns each control.")

	case OutcomeUniform:
		fmt.Fprintf(w, "ISSUE: all controls have same component: %s\n", d.Components[0])

	case OutcomeEmpty:
		fmt.Fprintln(w, "ISSUE: server returned no controls")
	}
}
