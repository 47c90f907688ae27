// Package builtin provides descriptors for the workspace tools the
// chat assistant can call. The business logic lives behind narrow
// service interfaces; this package only shapes contracts, risk levels
// and effects.
package builtin

import (
	"context"
	"fmt"

	"github.com/planora/planora/pkg/tools"
)

// NoteService creates notes in a workspace
type NoteService interface {
	AddNote(ctx context.Context, workspaceID, projectID, content string) (string, error)
}

// TaskService creates and updates tasks in a workspace
type TaskService interface {
	CreateTask(ctx context.Context, workspaceID, projectID, title, description string) (string, error)
	UpdateTask(ctx context.Context, workspaceID, taskID string, fields map[string]interface{}) error
}

// EmailSender sends email on behalf of the workspace
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// TelegramSender sends Telegram messages on behalf of the workspace
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// AddNote returns the add_note descriptor: low risk, no confirmation
func AddNote(notes NoteService) tools.Descriptor {
	return tools.Descriptor{
		Name:        "add_note",
		Description: "Add a note to the current workspace or project",
		Parameters: []tools.Parameter{
			{Name: "content", Type: "string", Description: "Note content", Required: true},
		},
		Risk:   tools.RiskLow,
		Scopes: []tools.Scope{tools.ScopeWorkspace, tools.ScopeProject},
		Effect: func(ctx context.Context, input map[string]interface{}, inv tools.InvocationContext) (interface{}, error) {
			content, _ := input["content"].(string)
			id, err := notes.AddNote(ctx, inv.WorkspaceID, inv.ProjectID, content)
			if err != nil {
				return nil, fmt.Errorf("failed to add note: %w", err)
			}
			return map[string]interface{}{"note_id": id}, nil
		},
	}
}

// CreateTask returns the create_task descriptor
func CreateTask(tasks TaskService) tools.Descriptor {
	return tools.Descriptor{
		Name:        "create_task",
		Description: "Create a task in the current workspace or project",
		Parameters: []tools.Parameter{
			{Name: "title", Type: "string", Description: "Task title", Required: true},
			{Name: "description", Type: "string", Description: "Task description", Required: false},
		},
		Risk:   tools.RiskLow,
		Scopes: []tools.Scope{tools.ScopeWorkspace, tools.ScopeProject},
		Effect: func(ctx context.Context, input map[string]interface{}, inv tools.InvocationContext) (interface{}, error) {
			title, _ := input["title"].(string)
			description, _ := input["description"].(string)
			id, err := tasks.CreateTask(ctx, inv.WorkspaceID, inv.ProjectID, title, description)
			if err != nil {
				return nil, fmt.Errorf("failed to create task: %w", err)
			}
			return map[string]interface{}{"task_id": id}, nil
		},
	}
}

// UpdateTask returns the update_task descriptor
func UpdateTask(tasks TaskService) tools.Descriptor {
	return tools.Descriptor{
		Name:        "update_task",
		Description: "Update fields of an existing task",
		Parameters: []tools.Parameter{
			{Name: "task_id", Type: "string", Description: "Task identifier", Required: true},
			{Name: "fields", Type: "object", Description: "Fields to update", Required: true},
		},
		Risk:   tools.RiskMedium,
		Scopes: []tools.Scope{tools.ScopeWorkspace, tools.ScopeProject},
		Effect: func(ctx context.Context, input map[string]interface{}, inv tools.InvocationContext) (interface{}, error) {
			taskID, _ := input["task_id"].(string)
			fields, _ := input["fields"].(map[string]interface{})
			if err := tasks.UpdateTask(ctx, inv.WorkspaceID, taskID, fields); err != nil {
				return nil, fmt.Errorf("failed to update task: %w", err)
			}
			return map[string]interface{}{"task_id": taskID, "updated": true}, nil
		},
	}
}

// SendEmail returns the send_email descriptor: high risk, always
// behind confirmation
func SendEmail(email EmailSender) tools.Descriptor {
	return tools.Descriptor{
		Name:        "send_email",
		Description: "Send an email on behalf of the workspace",
		Parameters: []tools.Parameter{
			{Name: "to", Type: "string", Description: "Recipient address", Required: true},
			{Name: "subject", Type: "string", Description: "Email subject", Required: true},
			{Name: "body", Type: "string", Description: "Email body", Required: true},
		},
		Risk:                 tools.RiskHigh,
		RequiresConfirmation: true,
		Effect: func(ctx context.Context, input map[string]interface{}, inv tools.InvocationContext) (interface{}, error) {
			to, _ := input["to"].(string)
			subject, _ := input["subject"].(string)
			body, _ := input["body"].(string)
			if err := email.SendEmail(ctx, to, subject, body); err != nil {
				return nil, fmt.Errorf("failed to send email: %w", err)
			}
			return map[string]interface{}{"sent": true, "to": to}, nil
		},
	}
}

// SendTelegram returns the send_telegram descriptor
func SendTelegram(telegram TelegramSender) tools.Descriptor {
	return tools.Descriptor{
		Name:        "send_telegram",
		Description: "Send a Telegram message on behalf of the workspace",
		Parameters: []tools.Parameter{
			{Name: "chat_id", Type: "string", Description: "Target chat", Required: true},
			{Name: "text", Type: "string", Description: "Message text", Required: true},
		},
		Risk:                 tools.RiskMedium,
		RequiresConfirmation: true,
		Effect: func(ctx context.Context, input map[string]interface{}, inv tools.InvocationContext) (interface{}, error) {
			chatID, _ := input["chat_id"].(string)
			text, _ := input["text"].(string)
			if err := telegram.SendMessage(ctx, chatID, text); err != nil {
				return nil, fmt.Errorf("failed to send telegram message: %w", err)
			}
			return map[string]interface{}{"sent": true}, nil
		},
	}
}

// RegisterAll registers every builtin tool whose service is non-nil
func RegisterAll(catalog *tools.Catalog, notes NoteService, tasks TaskService, email EmailSender, telegram TelegramSender) error {
	if notes != nil {
		if err := catalog.Register(AddNote(notes)); err != nil {
			return err
		}
	}
	if tasks != nil {
		if err := catalog.Register(CreateTask(tasks)); err != nil {
			return err
		}
		if err := catalog.Register(UpdateTask(tasks)); err != nil {
			return err
		}
	}
	if email != nil {
		if err := catalog.Register(SendEmail(email)); err != nil {
			return err
		}
	}
	if telegram != nil {
		if err := catalog.Register(SendTelegram(telegram)); err != nil {
			return err
		}
	}
	return nil
}
