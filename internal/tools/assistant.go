package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Collaborator contracts for the mail, calendar, and task tool families.
// The vendor OAuth clients implementing them live outside this repository;
// tests use fakes.

// Event is one calendar entry.
type Event struct {
	Title    string
	Start    time.Time
	End      time.Time
	Location string
}

// Slot is one free window found by an availability check.
type Slot struct {
	Start time.Time
	End   time.Time
}

// EventRequest describes an event to create.
type EventRequest struct {
	Title       string
	Date        string
	Time        string
	Duration    time.Duration
	Attendees   []string
	Location    string
	Description string
}

// Task is one open task.
type Task struct {
	ID       string
	Content  string
	Due      string
	Priority int
}

// TaskRequest describes a task to create.
type TaskRequest struct {
	Content     string
	Description string
	Due         string
	Project     string
	Priority    int
}

// MailService sends and drafts email.
type MailService interface {
	SendEmail(ctx context.Context, to, subject, body, cc, bcc string) (string, error)
	CreateDraft(ctx context.Context, to, subject, body string) (string, error)
}

// CalendarService reads and writes calendar state.
type CalendarService interface {
	Events(ctx context.Context, date string) ([]Event, error)
	Availability(ctx context.Context, date string, duration time.Duration, startHour, endHour int) ([]Slot, error)
	CreateEvent(ctx context.Context, req EventRequest) (string, error)
}

// TaskService reads and writes tasks.
type TaskService interface {
	ListTasks(ctx context.Context, project, filter string) ([]Task, error)
	CreateTask(ctx context.Context, req TaskRequest) (string, error)
}

// RegisterMail wires the email tools to svc.
func RegisterMail(mux *Mux, svc MailService) error {
	err := mux.Register(SendEmail, func(ctx context.Context, args map[string]any) (string, error) {
		id, err := svc.SendEmail(ctx,
			stringArg(args, "to", ""),
			stringArg(args, "subject", ""),
			stringArg(args, "body", ""),
			stringArg(args, "cc", ""),
			stringArg(args, "bcc", ""))
		if err != nil {
			return "", fmt.Errorf("tools: send email: %w", err)
		}
		return fmt.Sprintf("Email sent to %s (id %s).", stringArg(args, "to", ""), id), nil
	})
	if err != nil {
		return err
	}
	return mux.Register(CreateDraft, func(ctx context.Context, args map[string]any) (string, error) {
		id, err := svc.CreateDraft(ctx,
			stringArg(args, "to", ""),
			stringArg(args, "subject", ""),
			stringArg(args, "body", ""))
		if err != nil {
			return "", fmt.Errorf("tools: create draft: %w", err)
		}
		return fmt.Sprintf("Draft created (id %s). It will not send until you send it.", id), nil
	})
}

// RegisterCalendar wires the calendar tools to svc.
func RegisterCalendar(mux *Mux, svc CalendarService) error {
	err := mux.Register(GetCalendarEvents, func(ctx context.Context, args map[string]any) (string, error) {
		events, err := svc.Events(ctx, stringArg(args, "date", "today"))
		if err != nil {
			return "", fmt.Errorf("tools: calendar events: %w", err)
		}
		if len(events) == 0 {
			return "No events scheduled.", nil
		}
		var lines []string
		for _, ev := range events {
			line := fmt.Sprintf("%s-%s %s",
				ev.Start.Format("15:04"), ev.End.Format("15:04"), ev.Title)
			if ev.Location != "" {
				line += " @ " + ev.Location
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n"), nil
	})
	if err != nil {
		return err
	}

	err = mux.Register(CheckAvailability, func(ctx context.Context, args map[string]any) (string, error) {
		slots, err := svc.Availability(ctx,
			stringArg(args, "date", "today"),
			time.Duration(intArg(args, "duration_minutes", 30))*time.Minute,
			intArg(args, "working_hours_start", 9),
			intArg(args, "working_hours_end", 18))
		if err != nil {
			return "", fmt.Errorf("tools: availability: %w", err)
		}
		if len(slots) == 0 {
			return "No free slots in working hours.", nil
		}
		var lines []string
		for _, slot := range slots {
			lines = append(lines, fmt.Sprintf("%s-%s free",
				slot.Start.Format("15:04"), slot.End.Format("15:04")))
		}
		return strings.Join(lines, "\n"), nil
	})
	if err != nil {
		return err
	}

	return mux.Register(CreateEvent, func(ctx context.Context, args map[string]any) (string, error) {
		id, err := svc.CreateEvent(ctx, EventRequest{
			Title:       stringArg(args, "title", ""),
			Date:        stringArg(args, "date", ""),
			Time:        stringArg(args, "time", ""),
			Duration:    time.Duration(intArg(args, "duration_minutes", 60)) * time.Minute,
			Attendees:   stringsArg(args, "attendees"),
			Location:    stringArg(args, "location", ""),
			Description: stringArg(args, "description", ""),
		})
		if err != nil {
			return "", fmt.Errorf("tools: create event: %w", err)
		}
		return fmt.Sprintf("Event %q created (id %s).", stringArg(args, "title", ""), id), nil
	})
}

// RegisterTasks wires the task tools to svc.
func RegisterTasks(mux *Mux, svc TaskService) error {
	err := mux.Register(ListTasks, func(ctx context.Context, args map[string]any) (string, error) {
		tasks, err := svc.ListTasks(ctx,
			stringArg(args, "project", ""),
			stringArg(args, "filter", ""))
		if err != nil {
			return "", fmt.Errorf("tools: list tasks: %w", err)
		}
		if len(tasks) == 0 {
			return "No open tasks.", nil
		}
		var lines []string
		for _, task := range tasks {
			line := task.Content
			if task.Due != "" {
				line += " (due " + task.Due + ")"
			}
			if task.Priority > 1 {
				line += fmt.Sprintf(" [p%d]", task.Priority)
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n"), nil
	})
	if err != nil {
		return err
	}

	return mux.Register(CreateTask, func(ctx context.Context, args map[string]any) (string, error) {
		id, err := svc.CreateTask(ctx, TaskRequest{
			Content:     stringArg(args, "content", ""),
			Description: stringArg(args, "description", ""),
			Due:         stringArg(args, "due", ""),
			Project:     stringArg(args, "project", ""),
			Priority:    intArg(args, "priority", 1),
		})
		if err != nil {
			return "", fmt.Errorf("tools: create task: %w", err)
		}
		return fmt.Sprintf("Task created (id %s).", id), nil
	})
}
