// Package daily renders wall-clock awareness for the model: time of day,
// weekday, season, special dates, and the gap since the last conversation.
// It is stateless; everything derives from the clock and the supplied
// last-interaction timestamp.
package daily

import (
	"fmt"
	"strings"
	"time"
)

// TimePeriod names a slice of the day.
type TimePeriod string

const (
	EarlyMorning TimePeriod = "early_morning" // 05-07
	Morning      TimePeriod = "morning"       // 08-11
	Afternoon    TimePeriod = "afternoon"     // 12-17
	Evening      TimePeriod = "evening"       // 18-21
	Night        TimePeriod = "night"         // 22-23
	LateNight    TimePeriod = "late_night"    // 00-04
)

// Season is a Northern Hemisphere season.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// PeriodAt returns the time period containing t.
func PeriodAt(t time.Time) TimePeriod {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 8:
		return EarlyMorning
	case hour >= 8 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 22:
		return Evening
	case hour >= 22:
		return Night
	default:
		return LateNight
	}
}

// SeasonAt returns the season containing t.
func SeasonAt(t time.Time) Season {
	switch month := t.Month(); {
	case month >= time.March && month <= time.May:
		return Spring
	case month >= time.June && month <= time.August:
		return Summer
	case month >= time.September && month <= time.November:
		return Autumn
	default:
		return Winter
	}
}

var greetings = map[TimePeriod][]string{
	EarlyMorning: {
		"Good morning! You're up early.",
		"Morning! Did you sleep well?",
		"The early-morning air feels fresh, doesn't it? Good morning!",
	},
	Morning: {
		"Good morning! How is your day going?",
		"Hello! Have you had breakfast?",
		"What a lively morning!",
	},
	Afternoon: {
		"Good afternoon! Did you have lunch?",
		"It's the afternoon already. Not too tired, I hope?",
		"Such a warm afternoon.",
	},
	Evening: {
		"Good evening! Have you eaten?",
		"How are you winding down your day?",
		"A calm evening, isn't it?",
	},
	Night: {
		"It's getting late. Still up?",
		"The night is deep. You've worked hard today.",
		"Quiet night tonight.",
	},
	LateNight: {
		"It's really late, are you okay?",
		"Deep into the night... can't sleep?",
		"Up at this hour, huh...",
	},
}

var dayComments = [7]string{
	"It's Sunday. Enjoy a restful day.",
	"It's Monday, the start of a new week. You've got this!",
	"It's Tuesday. Just a little further to the weekend.",
	"Wednesday, the middle of the week!",
	"It's Thursday. Almost there!",
	"It's Friday! The weekend is right around the corner.",
	"It's Saturday! Enjoying your weekend?",
}

var seasonComments = map[Season][]string{
	Spring: {
		"Spring is here. The flowers must be blooming.",
		"The spring breeze feels nice, doesn't it?",
		"Warm spring weather today.",
	},
	Summer: {
		"A hot summer day. Staying cool?",
		"It's summer! Watch out for the heat.",
		"The sun is strong this summer day.",
	},
	Autumn: {
		"It's autumn. The air is getting crisp.",
		"Autumn skies are the prettiest.",
		"The leaves must be turning beautiful colors.",
	},
	Winter: {
		"Cold winter days. Stay warm!",
		"It's winter. Don't catch a cold.",
		"Feels like it might snow.",
	},
}

var specialDates = map[[2]int]string{
	{1, 1}:   "It's New Year's Day! Happy new year!",
	{2, 14}:  "It's Valentine's Day!",
	{3, 14}:  "It's White Day!",
	{12, 24}: "It's Christmas Eve!",
	{12, 25}: "Merry Christmas!",
	{12, 31}: "It's the last day of the year!",
}

// pick selects one option deterministically from the day of year, so the
// context is stable within a day but varies across days.
func pick(options []string, t time.Time) string {
	if len(options) == 0 {
		return ""
	}
	return options[t.YearDay()%len(options)]
}

// Greeting returns a greeting matching the time of day at t.
func Greeting(t time.Time) string {
	return pick(greetings[PeriodAt(t)], t)
}

// DayComment returns a remark about t's weekday.
func DayComment(t time.Time) string {
	return dayComments[int(t.Weekday())]
}

// SeasonComment returns a remark about t's season.
func SeasonComment(t time.Time) string {
	return pick(seasonComments[SeasonAt(t)], t)
}

// SpecialDateComment returns the remark for t's date, or "" when the date
// is not special.
func SpecialDateComment(t time.Time) string {
	return specialDates[[2]int{int(t.Month()), t.Day()}]
}

// gapComment describes the time since the previous conversation.
func gapComment(now, last time.Time) string {
	diff := now.Sub(last)
	switch {
	case diff < time.Hour:
		return "We talked just a moment ago."
	case diff < 6*time.Hour:
		return fmt.Sprintf("We last talked %d hours ago.", int(diff.Hours()))
	case diff < 24*time.Hour:
		return "We talked earlier today."
	case diff < 72*time.Hour:
		return fmt.Sprintf("It's been %d days! Good to hear from you again.", int(diff.Hours()/24))
	default:
		return fmt.Sprintf("It's been %d days! I really missed talking with you.", int(diff.Hours()/24))
	}
}

// FullContext renders the time-awareness block injected alongside the
// persona. lastInteraction may be nil for a first-ever conversation.
func FullContext(now time.Time, characterName string, lastInteraction *time.Time) string {
	var b strings.Builder

	b.WriteString("[Current time context]\n")
	fmt.Fprintf(&b, "- Now: %s\n", now.Format("Monday, January 2 2006, 15:04"))
	fmt.Fprintf(&b, "- Time of day: %s\n", PeriodAt(now))
	fmt.Fprintf(&b, "- Season: %s\n", SeasonAt(now))

	if special := SpecialDateComment(now); special != "" {
		fmt.Fprintf(&b, "- Special date: %s\n", special)
	}

	if lastInteraction != nil {
		fmt.Fprintf(&b, "\n[Time since last conversation] %s\n", gapComment(now, *lastInteraction))
	} else {
		fmt.Fprintf(&b, "\nThis is your first conversation with the user. Introduce yourself warmly as %s.\n", characterName)
	}

	switch hour := now.Hour(); {
	case hour >= 22 || hour <= 5:
		b.WriteString("\nGuidance: it is late at night; keep the tone quiet and intimate.")
	case hour >= 6 && hour <= 9:
		b.WriteString("\nGuidance: it is morning; bring upbeat, positive energy.")
	case hour >= 12 && hour <= 14:
		b.WriteString("\nGuidance: lunchtime hours.")
	case hour >= 18 && hour <= 20:
		b.WriteString("\nGuidance: evening hours.")
	}

	return b.String()
}
