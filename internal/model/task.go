package model

import "time"

// DeadlineLayout is the format deadlines are entered in and stored as.
// Storing the text form keeps lexicographic ordering in SQL identical
// to chronological ordering.
const DeadlineLayout = "2006-01-02 15:04"

// Task represents a single reminder obligation, scoped to the Telegram
// user who created it.
type Task struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      int64 `gorm:"index"`
	Description string
	Category    string
	Deadline    string
	Completed   bool `gorm:"default:false"`
}

// DeadlineTime parses the stored deadline in the host's local time.
func (t Task) DeadlineTime() (time.Time, error) {
	return time.ParseInLocation(DeadlineLayout, t.Deadline, time.Local)
}
