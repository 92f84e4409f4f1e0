package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/models"
)

const searchMaxResults = 50

// RegisterSearch wires the search_messages tool to the local content index.
// The sync pipeline fills the table; the bot only reads it.
func RegisterSearch(mux *Mux, db *gorm.DB) error {
	if db == nil {
		return errors.New("tools: search: database handle is required")
	}
	return mux.Register(SearchMessages, func(ctx context.Context, args map[string]any) (string, error) {
		return searchContent(ctx, db, args)
	})
}

func searchContent(ctx context.Context, db *gorm.DB, args map[string]any) (string, error) {
	query := stringArg(args, "query", "")
	max := intArg(args, "max_results", 10)
	if max > searchMaxResults {
		max = searchMaxResults
	}

	pattern := "%" + query + "%"
	q := db.WithContext(ctx).
		Where("title LIKE ? OR body LIKE ?", pattern, pattern).
		Order("item_time DESC").
		Limit(max)
	if source := stringArg(args, "source", ""); source != "" {
		q = q.Where("source = ?", source)
	}

	var items []models.ContentItem
	if err := q.Find(&items).Error; err != nil {
		return "", fmt.Errorf("tools: search content: %w", err)
	}
	if len(items) == 0 {
		return fmt.Sprintf("No results for %q.", query), nil
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "[%s] %s", item.Source, item.Title)
		if item.Author != "" {
			fmt.Fprintf(&b, " by %s", item.Author)
		}
		if !item.ItemTime.IsZero() {
			fmt.Fprintf(&b, " (%s)", item.ItemTime.Format("2006-01-02"))
		}
		b.WriteString("\n")
		if snippet := excerpt(item.Body, 200); snippet != "" {
			fmt.Fprintf(&b, "  %s\n", snippet)
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "  %s\n", item.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
