package model

import "time"

// StreakRecord is the per-account daily activity state. One per account.
type StreakRecord struct {
	AccountID        string
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time // calendar day in CanonicalZone; nil before first activity
	TotalDaysActive  int
	Version          int64
	UpdatedAt        time.Time
}

type StreakEventKind string

const (
	StreakNoChange  StreakEventKind = "no_change"
	StreakFirst     StreakEventKind = "first_activity"
	StreakContinued StreakEventKind = "streak_continued"
	StreakReset     StreakEventKind = "streak_reset"
)

// StreakEvent describes what a recorded activity did to the streak.
type StreakEvent struct {
	Kind           StreakEventKind `json:"kind"`
	PreviousStreak int             `json:"previous_streak,omitempty"`
	CurrentStreak  int             `json:"current_streak"`
}

// StreakStatus is the read model returned to callers.
type StreakStatus struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	TotalDaysActive  int        `json:"total_days_active"`
	IsActive         bool       `json:"is_active"`
}

func NewStreakRecord(accountID string) *StreakRecord {
	return &StreakRecord{AccountID: accountID}
}

func (s *StreakRecord) Clone() *StreakRecord {
	if s == nil {
		return nil
	}
	cp := *s
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		cp.LastActivityDate = &d
	}
	return &cp
}

// daysSince returns calendar days between the last activity and now.
// A last activity later than today counts as today.
func (s *StreakRecord) daysSince(now time.Time) int {
	n := DaysBetween(*s.LastActivityDate, now)
	if n < 0 {
		return 0
	}
	return n
}

// RecordActivity advances the streak for an activity at now.
// A gap of more than one day restarts the streak at one.
func (s *StreakRecord) RecordActivity(now time.Time) StreakEvent {
	today := CalendarDay(now)
	if s.LastActivityDate == nil {
		s.CurrentStreak = 1
		s.LongestStreak = max(s.LongestStreak, 1)
		s.TotalDaysActive++
		s.LastActivityDate = &today
		s.UpdatedAt = now
		return StreakEvent{Kind: StreakFirst, CurrentStreak: 1}
	}

	switch days := s.daysSince(now); {
	case days == 0:
		return StreakEvent{Kind: StreakNoChange, CurrentStreak: s.CurrentStreak}
	case days == 1:
		s.CurrentStreak++
		s.TotalDaysActive++
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
		s.LastActivityDate = &today
		s.UpdatedAt = now
		return StreakEvent{Kind: StreakContinued, CurrentStreak: s.CurrentStreak}
	default:
		prev := s.CurrentStreak
		s.CurrentStreak = 1
		s.LongestStreak = max(s.LongestStreak, 1)
		s.TotalDaysActive++
		s.LastActivityDate = &today
		s.UpdatedAt = now
		return StreakEvent{Kind: StreakReset, PreviousStreak: prev, CurrentStreak: 1}
	}
}

// Invalidate zeroes a streak that went stale without new activity.
// It reports whether the record changed and must be persisted.
func (s *StreakRecord) Invalidate(now time.Time) bool {
	if s.LastActivityDate == nil || s.CurrentStreak == 0 {
		return false
	}
	if s.daysSince(now) > 1 {
		s.CurrentStreak = 0
		s.UpdatedAt = now
		return true
	}
	return false
}

// EffectiveCurrent is the current streak as a status read would report it, without mutating.
func (s *StreakRecord) EffectiveCurrent(now time.Time) int {
	if s == nil || s.LastActivityDate == nil {
		return 0
	}
	if s.daysSince(now) > 1 {
		return 0
	}
	return s.CurrentStreak
}

func (s *StreakRecord) Status(now time.Time) StreakStatus {
	st := StreakStatus{
		CurrentStreak:   s.CurrentStreak,
		LongestStreak:   s.LongestStreak,
		TotalDaysActive: s.TotalDaysActive,
	}
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		st.LastActivityDate = &d
		st.IsActive = s.daysSince(now) <= 1
	}
	return st
}
