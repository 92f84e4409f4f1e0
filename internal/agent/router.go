package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Domain identifies a specialist.
type Domain string

const (
	DomainCalendar Domain = "calendar"
	DomainEmail    Domain = "email"
	DomainGitHub   Domain = "github"
	DomainResearch Domain = "research"
)

// Plan is a routing decision: answer conversationally, or hand the turn to
// one or more specialists.
type Plan struct {
	Conversational bool
	Domains        []Domain
	Reason         string
}

const (
	routeThreshold  = 0.3
	maxMultiDomains = 2
)

var greetings = []string{
	"hi", "hello", "hey", "sup", "yo",
	"good morning", "good afternoon", "good evening",
}

var conversationalPhrases = []string{
	"how are you", "what's up", "who are you", "what can you do",
	"thanks", "thank you", "great", "awesome", "cool", "ok", "okay",
	"help", "bye", "goodbye", "see you",
}

var multiDomainIndicators = []string{"and", "also", "both", "plus", "as well"}

var calendarKeywords = wordSet(
	"calendar", "schedule", "meeting", "event", "appointment",
	"availability", "free", "busy", "slot", "when", "tomorrow",
	"today", "morning", "afternoon", "evening", "book", "scheduled",
	"upcoming", "agenda",
)

var emailKeywords = wordSet(
	"email", "mail", "inbox", "unread", "message", "send",
	"reply", "draft", "from", "to", "subject", "attachment",
	"gmail", "sent", "received", "forward", "cc", "bcc",
)

var githubKeywords = wordSet(
	"github", "git", "repo", "repository", "pr", "prs", "pull", "request",
	"issue", "issues", "commit", "branch", "merge", "code", "review",
	"fork", "clone", "push", "bug", "feature",
)

var researchKeywords = wordSet(
	"search", "find", "look", "what", "where", "who",
	"information", "about", "related", "document", "file",
	"drive", "note", "summary", "briefing", "overview",
	"task", "tasks", "todo",
)

var dateIndicators = []string{
	"today", "tomorrow", "monday", "tuesday", "wednesday",
	"thursday", "friday", "saturday", "sunday", "next",
	"this week", "next week",
}

var questionWords = []string{"what", "where", "who", "how", "why", "when"}

var issueRefPattern = regexp.MustCompile(`#\d+`)

// planTask routes a message deterministically by keyword scoring, with a
// conversational short-circuit so tool search never fires on small talk.
func planTask(text string) Plan {
	if isConversational(text) {
		return Plan{Conversational: true, Reason: "conversational message"}
	}

	scores := map[Domain]float64{
		DomainCalendar: scoreCalendar(text),
		DomainEmail:    scoreEmail(text),
		DomainGitHub:   scoreGitHub(text),
		DomainResearch: scoreResearch(text),
	}

	type scored struct {
		domain Domain
		score  float64
	}
	var relevant []scored
	for domain, score := range scores {
		if score >= routeThreshold {
			relevant = append(relevant, scored{domain, score})
		}
	}
	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].score != relevant[j].score {
			return relevant[i].score > relevant[j].score
		}
		return relevant[i].domain < relevant[j].domain
	})

	switch {
	case len(relevant) == 0:
		return Plan{Domains: []Domain{DomainResearch}, Reason: "no strong match, defaulting to research"}
	case len(relevant) == 1:
		return Plan{
			Domains: []Domain{relevant[0].domain},
			Reason:  fmt.Sprintf("single domain match: %s", relevant[0].domain),
		}
	}

	lower := strings.ToLower(text)
	for _, indicator := range multiDomainIndicators {
		if containsWord(lower, indicator) {
			var domains []Domain
			for _, s := range relevant[:min(len(relevant), maxMultiDomains)] {
				domains = append(domains, s.domain)
			}
			return Plan{
				Domains: domains,
				Reason:  "multi-domain request: " + joinDomains(domains),
			}
		}
	}

	return Plan{
		Domains: []Domain{relevant[0].domain},
		Reason:  fmt.Sprintf("best match: %s (%.2f)", relevant[0].domain, relevant[0].score),
	}
}

func isConversational(text string) bool {
	lower := strings.TrimSpace(strings.ToLower(text))

	for _, g := range greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+",") {
			return true
		}
	}
	for _, phrase := range conversationalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	if len(strings.Fields(lower)) <= 2 && !strings.Contains(text, "?") {
		return true
	}
	return false
}

func scoreCalendar(text string) float64 {
	lower := strings.ToLower(text)
	if n := keywordMatches(lower, calendarKeywords); n > 0 {
		return min(0.3+float64(n)*0.15, 0.95)
	}
	for _, indicator := range dateIndicators {
		if strings.Contains(lower, indicator) {
			return 0.4
		}
	}
	return 0
}

func scoreEmail(text string) float64 {
	lower := strings.ToLower(text)
	if n := keywordMatches(lower, emailKeywords); n > 0 {
		return min(0.3+float64(n)*0.15, 0.95)
	}
	if strings.Contains(text, "@") || strings.Contains(lower, "draft") {
		return 0.6
	}
	if strings.Contains(lower, "unread") || strings.Contains(lower, "inbox") {
		return 0.7
	}
	return 0
}

func scoreGitHub(text string) float64 {
	lower := strings.ToLower(text)
	if n := keywordMatches(lower, githubKeywords); n > 0 {
		return min(0.3+float64(n)*0.2, 0.95)
	}
	if issueRefPattern.MatchString(text) {
		return 0.5
	}
	return 0
}

func scoreResearch(text string) float64 {
	lower := strings.ToLower(text)
	for _, kw := range []string{"task", "tasks", "todo", "to-do", "to do"} {
		if strings.Contains(lower, kw) {
			return 0.9
		}
	}
	if n := keywordMatches(lower, researchKeywords); n > 0 {
		return min(0.2+float64(n)*0.1, 0.7)
	}
	for _, q := range questionWords {
		if strings.HasPrefix(lower, q) {
			return 0.3
		}
	}
	if strings.Contains(lower, "briefing") || strings.Contains(lower, "overview") {
		return 0.4
	}
	return 0
}

func keywordMatches(lower string, keywords map[string]bool) int {
	n := 0
	for _, word := range strings.Fields(lower) {
		if keywords[strings.Trim(word, ".,!?:;\"'()")] {
			n++
		}
	}
	return n
}

func containsWord(lower, word string) bool {
	if strings.Contains(word, " ") {
		return strings.Contains(lower, word)
	}
	for _, w := range strings.Fields(lower) {
		if strings.Trim(w, ".,!?:;\"'()") == word {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func joinDomains(domains []Domain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}
