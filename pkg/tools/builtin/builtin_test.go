package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/pkg/tools"
)

type fakeNotes struct {
	lastContent string
	err         error
}

func (f *fakeNotes) AddNote(ctx context.Context, workspaceID, projectID, content string) (string, error) {
	f.lastContent = content
	return "note-1", f.err
}

type fakeTasks struct {
	lastTitle  string
	lastFields map[string]interface{}
}

func (f *fakeTasks) CreateTask(ctx context.Context, workspaceID, projectID, title, description string) (string, error) {
	f.lastTitle = title
	return "task-1", nil
}

func (f *fakeTasks) UpdateTask(ctx context.Context, workspaceID, taskID string, fields map[string]interface{}) error {
	f.lastFields = fields
	return nil
}

type fakeEmail struct {
	lastTo string
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	f.lastTo = to
	return nil
}

type fakeTelegram struct {
	lastText string
}

func (f *fakeTelegram) SendMessage(ctx context.Context, chatID, text string) error {
	f.lastText = text
	return nil
}

func testInv() tools.InvocationContext {
	return tools.InvocationContext{ActorID: "user-1", WorkspaceID: "ws-1", ProjectID: "proj-1"}
}

func TestRegisterAll(t *testing.T) {
	catalog := tools.NewCatalog()

	err := RegisterAll(catalog, &fakeNotes{}, &fakeTasks{}, &fakeEmail{}, &fakeTelegram{})
	require.NoError(t, err)

	assert.Equal(t, []string{"add_note", "create_task", "update_task", "send_email", "send_telegram"}, catalog.Names())
}

func TestRegisterAll_SkipsNilServices(t *testing.T) {
	catalog := tools.NewCatalog()

	err := RegisterAll(catalog, &fakeNotes{}, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"add_note"}, catalog.Names())
}

func TestAddNote_Effect(t *testing.T) {
	notes := &fakeNotes{}
	d := AddNote(notes)

	assert.Equal(t, tools.RiskLow, d.Risk)
	assert.False(t, d.RequiresConfirmation)

	out, err := d.Effect(context.Background(), map[string]interface{}{"content": "buy milk"}, testInv())
	require.NoError(t, err)
	assert.Equal(t, "buy milk", notes.lastContent)

	result := out.(map[string]interface{})
	assert.Equal(t, "note-1", result["note_id"])
}

func TestAddNote_EffectError(t *testing.T) {
	notes := &fakeNotes{err: errors.New("storage full")}
	d := AddNote(notes)

	_, err := d.Effect(context.Background(), map[string]interface{}{"content": "x"}, testInv())
	assert.Error(t, err)
}

func TestCreateTask_Effect(t *testing.T) {
	tasks := &fakeTasks{}
	d := CreateTask(tasks)

	out, err := d.Effect(context.Background(), map[string]interface{}{"title": "Ship release"}, testInv())
	require.NoError(t, err)
	assert.Equal(t, "Ship release", tasks.lastTitle)

	result := out.(map[string]interface{})
	assert.Equal(t, "task-1", result["task_id"])
}

func TestUpdateTask_Effect(t *testing.T) {
	tasks := &fakeTasks{}
	d := UpdateTask(tasks)

	assert.Equal(t, tools.RiskMedium, d.Risk)

	out, err := d.Effect(context.Background(), map[string]interface{}{
		"task_id": "task-1",
		"fields":  map[string]interface{}{"status": "done"},
	}, testInv())
	require.NoError(t, err)
	assert.Equal(t, "done", tasks.lastFields["status"])

	result := out.(map[string]interface{})
	assert.Equal(t, true, result["updated"])
}

func TestSendEmail_Descriptor(t *testing.T) {
	email := &fakeEmail{}
	d := SendEmail(email)

	// External communication is high risk and always behind confirmation
	assert.Equal(t, tools.RiskHigh, d.Risk)
	assert.True(t, d.RequiresConfirmation)

	_, err := d.Effect(context.Background(), map[string]interface{}{
		"to": "boss@example.com", "subject": "Status", "body": "All green",
	}, testInv())
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", email.lastTo)
}

func TestSendTelegram_Descriptor(t *testing.T) {
	telegram := &fakeTelegram{}
	d := SendTelegram(telegram)

	assert.True(t, d.RequiresConfirmation)

	_, err := d.Effect(context.Background(), map[string]interface{}{
		"chat_id": "42", "text": "standup in 5",
	}, testInv())
	require.NoError(t, err)
	assert.Equal(t, "standup in 5", telegram.lastText)
}
