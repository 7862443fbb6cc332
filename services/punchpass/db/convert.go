package db

import (
	"database/sql"
	"time"

	"punchpass-backend/lib/scrapers/punchpass"
)

// EventParams flattens a scraped event into row shape. Title and url
// are only written on first insert, refreshes of an existing row keep
// whatever was seen first.
func EventParams(ev punchpass.Event) UpsertEventParams {
	startDate, startDatetime, startTimezone := timeColumns(ev.Start)
	endDate, endDatetime, endTimezone := timeColumns(ev.End)
	return UpsertEventParams{
		EventID:       ev.Id,
		Status:        ev.Status,
		Url:           ev.Url,
		Title:         ev.Title,
		Location:      ev.Location,
		Instructor:    ev.Instructor,
		StartDate:     startDate,
		StartDatetime: startDatetime,
		StartTimezone: startTimezone,
		EndDate:       endDate,
		EndDatetime:   endDatetime,
		EndTimezone:   endTimezone,
		ScrapedAt:     ev.Timestamp.Format(time.RFC3339),
	}
}

// EventFromRow is the inverse of EventParams.
func EventFromRow(row Event) punchpass.Event {
	scrapedAt, _ := time.Parse(time.RFC3339, row.ScrapedAt)
	return punchpass.Event{
		Id:         row.EventID,
		Status:     row.Status,
		Url:        row.Url,
		Title:      row.Title,
		Location:   row.Location,
		Instructor: row.Instructor,
		Start:      timeFromColumns(row.StartDate, row.StartDatetime, row.StartTimezone),
		End:        timeFromColumns(row.EndDate, row.EndDatetime, row.EndTimezone),
		Timestamp:  scrapedAt,
	}
}

func UserParams(user punchpass.User) CreateUserParams {
	return CreateUserParams{
		UserID:    user.Id,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Email:     user.Email,
	}
}

func UserFromRow(row User) punchpass.User {
	return punchpass.User{
		Id:        row.UserID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Phone:     row.Phone,
		Email:     row.Email,
	}
}

func timeColumns(st *punchpass.StructuredTime) (date, datetime, tz sql.NullString) {
	if st == nil {
		return date, datetime, tz
	}
	date = sql.NullString{String: st.Date, Valid: true}
	datetime = sql.NullString{String: st.DateTime, Valid: true}
	tz = sql.NullString{String: st.TimeZone, Valid: true}
	return date, datetime, tz
}

func timeFromColumns(date, datetime, tz sql.NullString) *punchpass.StructuredTime {
	if !date.Valid || !datetime.Valid || !tz.Valid {
		return nil
	}
	return &punchpass.StructuredTime{
		Date:     date.String,
		DateTime: datetime.String,
		TimeZone: tz.String,
	}
}
