package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownStatus = errors.New("unknown presence status")

type PresenceStatus string

const (
	StatusAvailable     PresenceStatus = "Available"
	StatusBusy          PresenceStatus = "Busy"
	StatusDoNotDisturb  PresenceStatus = "Do not disturb"
	StatusBeRightBack   PresenceStatus = "Be right back"
	StatusAppearAway    PresenceStatus = "Appear away"
	StatusAppearOffline PresenceStatus = "Appear offline"
)

// PresenceStatuses lists the selectable statuses in display order.
var PresenceStatuses = []PresenceStatus{
	StatusAvailable,
	StatusBusy,
	StatusDoNotDisturb,
	StatusBeRightBack,
	StatusAppearAway,
	StatusAppearOffline,
}

func ParsePresenceStatus(raw string) (PresenceStatus, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range PresenceStatuses {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// OrDefault returns Available for profiles that never picked a status.
func (s PresenceStatus) OrDefault() PresenceStatus {
	if s == "" {
		return StatusAvailable
	}
	return s
}

type Profile struct {
	ID          string         `json:"id" db:"id"`
	Email       string         `json:"email" db:"email"`
	DisplayName string         `json:"display_name" db:"display_name"`
	AvatarColor string         `json:"avatar_color" db:"avatar_color"`
	Status      PresenceStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	LastSeen    time.Time      `json:"last_seen" db:"last_seen"`
}

const DefaultAvatarColor = "#3b82f6"

// ProfileCreate is what a new account starts with.
type ProfileCreate struct {
	Email       string `validate:"required,email"`
	DisplayName string `validate:"required,min=1,max=64"`
	AvatarColor string `validate:"omitempty,hexcolor"`
}

// ProfileUpdate carries the display fields a user may change on their own profile.
type ProfileUpdate struct {
	DisplayName *string `validate:"omitempty,min=1,max=64"`
	AvatarColor *string `validate:"omitempty,hexcolor"`
}

const onlineWindow = time.Minute

// Presence renders the status line shown next to a profile.
func (p *Profile) Presence(now time.Time) string {
	if p.Status == StatusAppearOffline {
		return "Offline"
	}
	since := now.Sub(p.LastSeen)
	if since < onlineWindow {
		return "Online"
	}
	return "Last seen " + humanize(since) + " ago"
}

func humanize(d time.Duration) string {
	switch {
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
