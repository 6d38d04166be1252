package bot

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"readlater/internal/domain"
	"readlater/internal/markdown"
	"readlater/internal/pagetitle"
	"readlater/internal/schedule"
)

const (
	telegramMessageMaxLength = 4096
	bytesPerKB               = 1024

	deepLinkArchive = "archive_"
	deepLinkRestore = "restore_"
	deepLinkDelete  = "delete_"
)

type listKind int

const (
	listToday listKind = iota
	listPending
	listArchived
)

func (k listKind) header() string {
	switch k {
	case listToday:
		return "📚 Today"
	case listPending:
		return "🕒 Pending"
	default:
		return "🗄 Archived"
	}
}

func (k listKind) empty() string {
	switch k {
	case listToday:
		return "🎉 Nothing to read today\\."
	case listPending:
		return "✖️ No pending articles\\."
	default:
		return "✖️ No archived articles\\."
	}
}

func formatWhen(t, now time.Time) string {
	return schedule.FormatRelative(t, now) + " " + t.In(now.Location()).Format("15:04")
}

func deepLink(botUserName, action, articleID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%s", botUserName, action, articleID)
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func articleTitle(a domain.Article) string {
	if title := strings.TrimSpace(a.Title); title != "" {
		return title
	}
	return a.URL
}

// formatArticleLine renders one list entry with its domain, due date and
// deep link actions. Without a bot user name the actions are left out.
func formatArticleLine(i int, a domain.Article, kind listKind, botUserName string, now time.Time) string {
	var line strings.Builder

	title := markdown.EscapeV2(articleTitle(a))
	if isWebURL(a.URL) {
		title = markdown.Link(articleTitle(a), a.URL)
	}

	fmt.Fprintf(&line, "%d\\. %s\n", i, title)

	meta := []string{markdown.EscapeV2(pagetitle.Domain(a.URL))}
	if kind == listArchived {
		meta = append(meta, markdown.EscapeV2("saved "+formatWhen(a.SavedAt, now)))
	} else {
		meta = append(meta, markdown.EscapeV2(formatWhen(a.ScheduledFor, now)))
	}

	if botUserName != "" {
		primary := fmt.Sprintf("[archive](%s)", deepLink(botUserName, deepLinkArchive, a.ID))
		if kind == listArchived {
			primary = fmt.Sprintf("[restore](%s)", deepLink(botUserName, deepLinkRestore, a.ID))
		}

		meta = append(meta, primary, fmt.Sprintf("[delete](%s)", deepLink(botUserName, deepLinkDelete, a.ID)))
	}

	line.WriteString("    ")
	line.WriteString(strings.Join(meta, " · "))
	line.WriteString("\n\n")

	return line.String()
}

// formatArticleList splits the list into messages that fit Telegram's limit.
func formatArticleList(articles []domain.Article, kind listKind, botUserName string, now time.Time) []string {
	if len(articles) == 0 {
		return []string{kind.empty()}
	}

	header := fmt.Sprintf("*%s \\(%d\\)*\n\n", markdown.EscapeV2(kind.header()), len(articles))
	continued := fmt.Sprintf("*%s \\(continue\\)*\n\n", markdown.EscapeV2(kind.header()))

	var messages []string
	var current strings.Builder

	current.WriteString(header)

	for i, a := range articles {
		line := formatArticleLine(i+1, a, kind, botUserName, now)

		if current.Len()+len(line) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(continued)
		}

		current.WriteString(line)
	}

	return append(messages, current.String())
}

func formatSaved(a domain.Article, now time.Time) string {
	return fmt.Sprintf("✅ Saved %s\n\n⏰ %s",
		boldTitle(a),
		markdown.EscapeV2(formatWhen(a.ScheduledFor, now)))
}

func formatRescheduled(a domain.Article, now time.Time) string {
	return fmt.Sprintf("⏰ %s moved to %s",
		boldTitle(a),
		markdown.EscapeV2(formatWhen(a.ScheduledFor, now)))
}

func formatMenu(dueToday int) string {
	if dueToday == 0 {
		return "❔ *Choose an option:*"
	}

	return fmt.Sprintf("📌 *%d due today*\n\n❔ *Choose an option:*", dueToday)
}

func formatUsage(u domain.Usage) string {
	return fmt.Sprintf("*💾 Storage*\n\nUsed %s of %s \\(%d%%\\)\\.",
		markdown.EscapeV2(formatKB(u.UsedBytes)),
		markdown.EscapeV2(formatKB(u.TotalBytes)),
		u.Percentage)
}

func formatKB(bytes int) string {
	return fmt.Sprintf("%.1f KB", float64(bytes)/bytesPerKB)
}

func formatSettings(s domain.Settings, now time.Time) string {
	state := "on"
	if !s.NotifyEnabled {
		state = "off"
	}

	return fmt.Sprintf("*⚙️ Settings*\n\n"+
		"Daily reminder is %s at %s\\.\n"+
		"Current time is %s \\(%s\\)\\.\n\n"+
		"Choose an hour below or send `/notify HH:MM`\\.",
		state,
		markdown.Bold(s.NotifyTime),
		now.Format("15:04"),
		markdown.EscapeV2(now.Location().String()))
}

func boldTitle(a domain.Article) string {
	return markdown.Bold(articleTitle(a))
}
