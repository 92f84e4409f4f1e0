package tools

// Tool names. Specialist subsets below reference these.
const (
	SearchMessages    = "search_messages"
	GetCalendarEvents = "get_calendar_events"
	CheckAvailability = "check_availability"
	CreateEvent       = "create_calendar_event"
	CreateDraft       = "create_email_draft"
	SendEmail         = "send_email"
	GitHubPRs         = "get_github_prs"
	GitHubIssues      = "get_github_issues"
	SearchGitHubCode  = "search_github_code"
	CreateGitHubIssue = "create_github_issue"
	ListTasks         = "list_tasks"
	CreateTask        = "create_task"
)

// Specialist tool subsets.
var (
	CalendarTools = []string{GetCalendarEvents, CheckAvailability, CreateEvent}
	EmailTools    = []string{SearchMessages, CreateDraft, SendEmail}
	GitHubTools   = []string{GitHubPRs, GitHubIssues, SearchGitHubCode, CreateGitHubIssue}
	ResearchTools = []string{SearchMessages, ListTasks, CreateTask}
)

// Catalog returns the full tool set. Called once at startup; the resulting
// registry is shared read-only by every executor.
func Catalog() []Spec {
	return []Spec{
		{
			Name:        SearchMessages,
			Description: "Search indexed content (emails, documents, chat messages, events) by keyword.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Search query text", Required: true},
				{Name: "source", Type: TypeString, Description: "Filter by source: gmail, drive, calendar, github, slack"},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum number of results (default 10)"},
			},
		},
		{
			Name:        GetCalendarEvents,
			Description: "Get calendar events for a specific date.",
			Params: []Param{
				{Name: "date", Type: TypeString, Description: "Date reference: 'today', 'tomorrow', or ISO format (YYYY-MM-DD)", Required: true},
			},
		},
		{
			Name:        CheckAvailability,
			Description: "Find free time slots on a date for scheduling meetings.",
			Params: []Param{
				{Name: "date", Type: TypeString, Description: "Date to check: 'today', 'tomorrow', or ISO format", Required: true},
				{Name: "duration_minutes", Type: TypeInteger, Description: "Minimum slot duration in minutes (default 30)"},
				{Name: "working_hours_start", Type: TypeInteger, Description: "Working hours start, 24h format (default 9)"},
				{Name: "working_hours_end", Type: TypeInteger, Description: "Working hours end, 24h format (default 18)"},
			},
		},
		{
			Name:        CreateEvent,
			Description: "Create a calendar event and optionally invite attendees.",
			Mutating:    true,
			Params: []Param{
				{Name: "title", Type: TypeString, Description: "Event title", Required: true},
				{Name: "date", Type: TypeString, Description: "Event date: 'today', 'tomorrow', or ISO format", Required: true},
				{Name: "time", Type: TypeString, Description: "Start time, e.g. '2pm' or '14:00'", Required: true},
				{Name: "duration_minutes", Type: TypeInteger, Description: "Duration in minutes (default 60)"},
				{Name: "attendees", Type: TypeStrings, Description: "Attendee email addresses"},
				{Name: "location", Type: TypeString, Description: "Event location"},
				{Name: "description", Type: TypeString, Description: "Event description"},
			},
		},
		{
			Name:        CreateDraft,
			Description: "Create an email draft. Never sends automatically.",
			Mutating:    true,
			Params: []Param{
				{Name: "to", Type: TypeString, Description: "Recipient email address", Required: true},
				{Name: "subject", Type: TypeString, Description: "Subject line", Required: true},
				{Name: "body", Type: TypeString, Description: "Email body", Required: true},
			},
		},
		{
			Name:        SendEmail,
			Description: "Send an email immediately. Use with caution.",
			Mutating:    true,
			Params: []Param{
				{Name: "to", Type: TypeString, Description: "Recipient email address", Required: true},
				{Name: "subject", Type: TypeString, Description: "Subject line", Required: true},
				{Name: "body", Type: TypeString, Description: "Email body", Required: true},
				{Name: "cc", Type: TypeString, Description: "CC recipients, comma-separated"},
				{Name: "bcc", Type: TypeString, Description: "BCC recipients, comma-separated"},
			},
		},
		{
			Name:        GitHubPRs,
			Description: "List pull requests in the configured repositories.",
			Params: []Param{
				{Name: "state", Type: TypeString, Description: "PR state filter: open, closed, all (default open)"},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum number of results (default 10)"},
			},
		},
		{
			Name:        GitHubIssues,
			Description: "List issues in the configured repositories.",
			Params: []Param{
				{Name: "state", Type: TypeString, Description: "Issue state filter: open, closed, all (default open)"},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum number of results (default 10)"},
			},
		},
		{
			Name:        SearchGitHubCode,
			Description: "Search code in GitHub repositories.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Code search query", Required: true},
				{Name: "repo", Type: TypeString, Description: "Limit to one repository, 'owner/repo'"},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum number of results (default 20)"},
			},
		},
		{
			Name:        CreateGitHubIssue,
			Description: "Create a new GitHub issue.",
			Mutating:    true,
			Params: []Param{
				{Name: "repo", Type: TypeString, Description: "Repository, 'owner/repo'", Required: true},
				{Name: "title", Type: TypeString, Description: "Issue title", Required: true},
				{Name: "body", Type: TypeString, Description: "Issue body"},
				{Name: "labels", Type: TypeStrings, Description: "Labels to apply"},
			},
		},
		{
			Name:        ListTasks,
			Description: "List active tasks.",
			Params: []Param{
				{Name: "project", Type: TypeString, Description: "Filter by project name"},
				{Name: "filter", Type: TypeString, Description: "Task filter, e.g. 'today' or 'overdue'"},
			},
		},
		{
			Name:        CreateTask,
			Description: "Create a new task.",
			Mutating:    true,
			Params: []Param{
				{Name: "content", Type: TypeString, Description: "Task title", Required: true},
				{Name: "description", Type: TypeString, Description: "Task description"},
				{Name: "due", Type: TypeString, Description: "Due date in natural language"},
				{Name: "project", Type: TypeString, Description: "Project name (defaults to inbox)"},
				{Name: "priority", Type: TypeInteger, Description: "Priority 1-4, 4 is urgent"},
			},
		},
	}
}
