package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{&canvas.OpError{Op: "move_to_room", ID: "a", Err: canvas.ErrCycle}, OutcomeCycle},
		{fmt.Errorf("wrapped: %w", canvas.ErrNotFound), OutcomeNotFound},
		{canvas.ErrInvalidTransition, OutcomeInvalidTransition},
		{canvas.ErrOutOfScope, OutcomeOutOfScope},
		{canvas.ErrInvalidDraft, OutcomeInvalid},
		{errors.New("boom"), OutcomeError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestRecordOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOp("move_to_room", nil)
	c.RecordOp("move_to_room", nil)
	c.RecordOp("move_to_room", canvas.ErrCycle)

	assert.Equal(t, 2.0, value(t, reg, "roomboard_operations_total", "move_to_room", OutcomeOK))
	assert.Equal(t, 1.0, value(t, reg, "roomboard_operations_total", "move_to_room", OutcomeCycle))
}

func TestObservePushAndImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObservePush("item", "synced")
	c.ObservePush("item", "error")
	c.ObservePush("folder", "synced")
	c.RecordImport("created")

	assert.Equal(t, 1.0, value(t, reg, "roomboard_sync_pushes_total", "item", "synced"))
	assert.Equal(t, 1.0, value(t, reg, "roomboard_sync_pushes_total", "folder", "synced"))
	assert.Equal(t, 1.0, value(t, reg, "roomboard_inbox_imports_total", "created"))
}

func TestObserveLayout(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveLayout(12, 3*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "roomboard_layout_entities" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(1), h.GetSampleCount())
			assert.Equal(t, 12.0, h.GetSampleSum())
		}
	}
	assert.True(t, found, "roomboard_layout_entities not gathered")
}

func TestWatchBoard(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	b := canvas.NewBoard()

	cancel := c.WatchBoard(b)

	_, err := b.AddItem(canvas.ItemDraft{Type: canvas.TypeText, Content: "a"})
	require.NoError(t, err)
	_, err = b.AddFolder(canvas.FolderDraft{Name: "f"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(t, reg, "roomboard_entities", "item"))
	assert.Equal(t, 1.0, value(t, reg, "roomboard_entities", "folder"))
	assert.Equal(t, 2.0, value(t, reg, "roomboard_changes_total", "create"))

	cancel()
	_, err = b.AddItem(canvas.ItemDraft{Type: canvas.TypeText, Content: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, value(t, reg, "roomboard_entities", "item"))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusConflict)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `roomboard_http_status_total{status_code="409"} 1`))
}

// value returns the counter or gauge value of the metric in family name
// whose label values are labels, ordered by label name.
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				if g := m.GetGauge(); g != nil {
					return g.GetValue()
				}
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels []string) bool {
	pairs := m.GetLabel()
	if len(pairs) != len(labels) {
		return false
	}
	for i, lp := range pairs {
		if lp.GetValue() != labels[i] {
			return false
		}
	}
	return true
}
