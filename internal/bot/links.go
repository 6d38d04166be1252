package bot

import (
	"fmt"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"mvdan.cc/xurls/v2"
)

type link struct {
	URL   string
	Title string
}

// extractLinks collects the links of a message: text links first, carrying
// their anchor text as title, then bare URLs. Duplicates are dropped.
func extractLinks(message *tgbotapi.Message) ([]link, error) {
	text, entities := message.Text, message.Entities
	if text == "" {
		text, entities = message.Caption, message.CaptionEntities
	}

	webURLRe, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	var links []link
	seen := make(map[string]int)

	add := func(l link) {
		l.URL = strings.TrimSpace(l.URL)
		l.Title = strings.TrimSpace(l.Title)
		if l.URL == "" {
			return
		}

		if i, ok := seen[l.URL]; ok {
			if links[i].Title == "" {
				links[i].Title = l.Title
			}
			return
		}

		seen[l.URL] = len(links)
		links = append(links, l)
	}

	encoded := utf16.Encode([]rune(text))

	for _, e := range entities {
		if e.Type != "text_link" || e.URL == "" {
			continue
		}

		add(link{URL: e.URL, Title: entityText(encoded, e)})
	}

	for _, u := range webURLRe.FindAllString(text, -1) {
		add(link{URL: u})
	}

	return links, nil
}

// entityText cuts an entity out of text; Telegram offsets count UTF-16 code
// units.
func entityText(encoded []uint16, e tgbotapi.MessageEntity) string {
	start, end := e.Offset, e.Offset+e.Length
	if start < 0 || end > len(encoded) || start >= end {
		return ""
	}

	return string(utf16.Decode(encoded[start:end]))
}
