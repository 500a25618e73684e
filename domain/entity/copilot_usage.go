package entity

import (
	"time"
)

// DayLayout is the calendar-day format used by the Copilot usage API.
const DayLayout = "2006-01-02"

// DailyUsageRecord is one calendar day of aggregated Copilot usage for an organization
type DailyUsageRecord struct {
	Day                   string
	TotalSuggestionsCount int64
	TotalAcceptancesCount int64
	TotalLinesSuggested   int64
	TotalLinesAccepted    int64
	TotalActiveUsers      int64
	TotalChatAcceptances  int64
	TotalChatTurns        int64
	TotalActiveChatUsers  int64
	Breakdown             []BreakdownEntry
}

// BreakdownEntry is the usage of a single (language, editor) pair within a day
type BreakdownEntry struct {
	Language         string
	Editor           string
	SuggestionsCount int64
	AcceptancesCount int64
	LinesSuggested   int64
	LinesAccepted    int64
	ActiveUsers      int64
}

// DayTime parses Day as a UTC calendar date.
func (r *DailyUsageRecord) DayTime() (time.Time, error) {
	return time.ParseInLocation(DayLayout, r.Day, time.UTC)
}

// SelectLatestDay returns the record with the greatest Day.
// Days are ISO calendar dates, so string order matches chronological order.
// When several records share the greatest Day the last one in slice order wins.
// The second return value is false when records is empty.
func SelectLatestDay(records []DailyUsageRecord) (*DailyUsageRecord, bool) {
	if len(records) == 0 {
		return nil, false
	}

	latest := 0
	for i := 1; i < len(records); i++ {
		if records[i].Day >= records[latest].Day {
			latest = i
		}
	}

	return &records[latest], true
}
