package observability

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/pkg/executor"
)

func sampleEntry() executor.AuditEntry {
	return executor.AuditEntry{
		ID:          "audit-1",
		WorkspaceID: "ws-1",
		Actor:       "user-1",
		Action:      "call.executed",
		Resource:    "add_note",
		Details:     map[string]interface{}{"call_id": "call-1"},
		Timestamp:   time.Now().UTC(),
	}
}

func TestAuditLogger_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := NewAuditLogger(path)
	require.NoError(t, err)

	require.NoError(t, a.AppendAuditEntry(context.Background(), sampleEntry()))
	require.NoError(t, a.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "audit-1", record["id"])
	assert.Equal(t, "call.executed", record["action"])
	assert.Equal(t, "ws-1", record["workspace_id"])

	details, ok := record["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "call-1", details["call_id"])
}

func TestAuditLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")

	a, err := NewAuditLogger(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.AppendAuditEntry(context.Background(), sampleEntry()))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAuditLogger_EmptyPathWritesToStderr(t *testing.T) {
	a, err := NewAuditLogger("")
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.AppendAuditEntry(context.Background(), sampleEntry()))
}

type failingSink struct{}

func (failingSink) AppendAuditEntry(ctx context.Context, entry executor.AuditEntry) error {
	return errors.New("sink down")
}

type countingSink struct{ count int }

func (c *countingSink) AppendAuditEntry(ctx context.Context, entry executor.AuditEntry) error {
	c.count++
	return nil
}

func TestMultiSink_AttemptsEverySink(t *testing.T) {
	first := &countingSink{}
	second := &countingSink{}

	sink := NewMultiSink(first, failingSink{}, second)
	err := sink.AppendAuditEntry(context.Background(), sampleEntry())

	// The failure is reported but does not stop the fan-out
	assert.Error(t, err)
	assert.Equal(t, 1, first.count)
	assert.Equal(t, 1, second.count)
}
