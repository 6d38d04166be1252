package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status int

const (
	StatusPending  Status = 0
	StatusArchived Status = 1
)

func (s Status) String() string {
	if s == StatusArchived {
		return "archived"
	}
	return "pending"
}

type Article struct {
	ID           string
	URL          string
	Title        string
	SavedAt      time.Time
	ScheduledFor time.Time
	Status       Status
}

// Draft is the input of a save. Zero ID and SavedAt mean "keep existing or
// generate".
type Draft struct {
	ID           string
	URL          string
	Title        string
	SavedAt      time.Time
	ScheduledFor time.Time
	Status       Status
}

const (
	DefaultNotifyTime    = "20:00"
	DefaultNotifyEnabled = true
)

type Settings struct {
	NotifyTime    string
	NotifyEnabled bool
}

func DefaultSettings() Settings {
	return Settings{
		NotifyTime:    DefaultNotifyTime,
		NotifyEnabled: DefaultNotifyEnabled,
	}
}

// Clock parses NotifyTime as "HH:MM".
func (s Settings) Clock() (int, int, error) {
	hourStr, minuteStr, ok := strings.Cut(strings.TrimSpace(s.NotifyTime), ":")
	if !ok {
		return 0, 0, fmt.Errorf("notify time %q: missing colon", s.NotifyTime)
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, fmt.Errorf("parse hour: %w", err)
	}

	minute, err := strconv.Atoi(minuteStr)
	if err != nil {
		return 0, 0, fmt.Errorf("parse minute: %w", err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.New("notify time is out of range")
	}

	return hour, minute, nil
}

type SettingsPatch struct {
	NotifyTime    *string
	NotifyEnabled *bool
}

func (p SettingsPatch) Apply(s Settings) Settings {
	if p.NotifyTime != nil {
		s.NotifyTime = *p.NotifyTime
	}
	if p.NotifyEnabled != nil {
		s.NotifyEnabled = *p.NotifyEnabled
	}
	return s
}

func (p SettingsPatch) Empty() bool {
	return p.NotifyTime == nil && p.NotifyEnabled == nil
}

type AlarmRecord struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	ArticleID string `json:"articleId"`
}

type Usage struct {
	UsedBytes  int
	TotalBytes int
	Percentage int
}
