package punchpass

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// StructuredTime is the normalized {date, timestamp, timezone} triple
// produced by NormalizeTime. DateTime's offset always matches TimeZone
// at that instant.
type StructuredTime struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Event is one class instance on the studio's schedule. Id is the
// site-assigned identifier taken from the detail page url and is
// stable across scrapes.
type Event struct {
	Id         int64           `json:"id"`
	Status     string          `json:"status"`
	Url        string          `json:"url"`
	Title      string          `json:"title"`
	Location   string          `json:"location"`
	Instructor string          `json:"instructor"`
	Start      *StructuredTime `json:"start"`
	End        *StructuredTime `json:"end"`
	Timestamp  time.Time       `json:"timestamp"`
}

// User is a customer record from the site's customer search.
type User struct {
	Id        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// BrowserCookie is the shape browser automation wants session
// cookies in.
type BrowserCookie struct {
	Name  string
	Value string
	Url   string
}
