package agent

import (
	"reflect"
	"testing"
)

func TestPlanTask(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		conversational bool
		domains        []Domain
	}{
		{"bare greeting", "hi", true, nil},
		{"greeting with tail", "hey, how's it going", true, nil},
		{"thanks", "thanks a lot!", true, nil},
		{"two words no question", "sounds good", true, nil},
		{"calendar", "what's on my calendar tomorrow?", false, []Domain{DomainCalendar}},
		{"email", "any unread email from alice?", false, []Domain{DomainEmail}},
		{"github", "list my open prs for review", false, []Domain{DomainGitHub}},
		{"tasks route to research", "show my overdue tasks please", false, []Domain{DomainResearch}},
		{"unknown defaults to research", "zygomorphic flowers thing???", false, []Domain{DomainResearch}},
		{
			"multi domain",
			"check my calendar for tomorrow and find the budget document",
			false,
			[]Domain{DomainCalendar, DomainResearch},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planTask(tt.text)
			if plan.Conversational != tt.conversational {
				t.Fatalf("Conversational = %v, want %v (%q)", plan.Conversational, tt.conversational, plan.Reason)
			}
			if tt.conversational {
				return
			}
			if !reflect.DeepEqual(plan.Domains, tt.domains) {
				t.Errorf("Domains = %v, want %v (%q)", plan.Domains, tt.domains, plan.Reason)
			}
		})
	}
}

func TestPlanTask_MultiDomainCapped(t *testing.T) {
	plan := planTask("search my email and calendar and also the github issues")
	if plan.Conversational {
		t.Fatal("classified as conversational")
	}
	if len(plan.Domains) > maxMultiDomains {
		t.Errorf("got %d domains, cap is %d", len(plan.Domains), maxMultiDomains)
	}
}

func TestIsConversational_QuestionsAreNot(t *testing.T) {
	if isConversational("prs?") {
		t.Error("short question treated as small talk")
	}
	if !isConversational("yo") {
		t.Error("greeting not recognized")
	}
}

func TestScoring(t *testing.T) {
	if s := scoreCalendar("schedule a meeting tomorrow"); s < routeThreshold {
		t.Errorf("calendar score = %.2f", s)
	}
	if s := scoreEmail("bob@example.com"); s < routeThreshold {
		t.Errorf("address score = %.2f", s)
	}
	if s := scoreGitHub("what happened with #142"); s < routeThreshold {
		t.Errorf("issue ref score = %.2f", s)
	}
	if s := scoreResearch("todoist backlog"); s < 0.9 {
		t.Errorf("task score = %.2f", s)
	}
	if s := scoreCalendar("completely unrelated text"); s != 0 {
		t.Errorf("unrelated calendar score = %.2f", s)
	}
}
