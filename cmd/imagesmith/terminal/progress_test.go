package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/chis/imagesmith/internal/events"
)

func init() {
	color.NoColor = true
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		ev   events.Event
		want string
	}{
		{
			name: "namespace",
			ev:   events.Event{Type: events.EventNamespaceStarted, Payload: map[string]interface{}{events.KeyNamespace: "ci"}},
			want: "==> ci",
		},
		{
			name: "variant failed",
			ev: events.Event{Type: events.EventVariantFinished, Payload: map[string]interface{}{
				events.KeyNamespace: "ci", events.KeyVariant: "edge",
				events.KeyStatus: "failed", events.KeyError: "build failed",
			}},
			want: "    ✗ failed ci/edge: build failed",
		},
		{
			name: "building",
			ev: events.Event{Type: events.EventVariantState, Payload: map[string]interface{}{
				events.KeyVariant: "edge", events.KeyState: "building",
			}},
			want: "    building edge",
		},
		{
			name: "hidden state",
			ev: events.Event{Type: events.EventVariantState, Payload: map[string]interface{}{
				events.KeyVariant: "edge", events.KeyState: "built",
			}},
			want: "",
		},
		{
			name: "sweep",
			ev: events.Event{Type: events.EventSweepTag, Payload: map[string]interface{}{
				events.KeyTag: "ghcr.io/acme/ci:1", events.KeyStatus: "skipped",
			}},
			want: "    - skipped ghcr.io/acme/ci:1",
		},
		{
			name: "run events are silent",
			ev:   events.Event{Type: events.EventRunStarted},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.ev))
		})
	}
}

func TestFollow(t *testing.T) {
	bus := events.NewBus()
	var buf bytes.Buffer

	stop := Follow(bus, &buf)
	bus.Emit(events.EventNamespaceStarted, events.KeyNamespace, "ci")
	bus.Emit(events.EventVariantStarted, events.KeyNamespace, "ci", events.KeyVariant, "stable")
	bus.Emit(events.EventVariantFinished, events.KeyNamespace, "ci", events.KeyVariant, "stable", events.KeyStatus, "success")
	stop()
	stop()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"==> ci", "--> ci/stable", "    ✓ success ci/stable"}, lines)
}
