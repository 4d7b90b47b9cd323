package server

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// ICS constants
const (
	icsProductID = "-//ecoharmonogram//Waste Collection//PL"
	icsTimezone  = "Europe/Warsaw"
)

// writeICS renders the whole snapshot as an iCalendar file with one
// all-day event per collection date per waste type.
func writeICS(w io.Writer, snap *model.ScheduleSnapshot, now time.Time) {
	fprintln(w, "BEGIN:VCALENDAR")
	fprintln(w, "VERSION:2.0")
	fprintf(w, "PRODID:%s\r\n", icsProductID)
	fprintln(w, "X-WR-CALNAME:Waste Collection")
	fprintf(w, "X-WR-TIMEZONE:%s\r\n", icsTimezone)
	fprintln(w, "CALSCALE:GREGORIAN")

	stamp := now.UTC().Format("20060102T150405Z")
	for _, ws := range sortedTypes(snap) {
		summary := DisplayName(ws.Name)
		for _, d := range ws.Dates {
			uid := fmt.Sprintf("%s-%s@ecoharmonogram.pl", d.Format("20060102"), ws.ID)
			fprintln(w, "BEGIN:VEVENT")
			fprintf(w, "UID:%s\r\n", uid)
			fprintf(w, "DTSTAMP:%s\r\n", stamp)
			fprintf(w, "DTSTART;VALUE=DATE:%s\r\n", d.Format("20060102"))
			fprintf(w, "DTEND;VALUE=DATE:%s\r\n", d.AddDate(0, 0, 1).Format("20060102"))
			fprintf(w, "SUMMARY:%s\r\n", summary)
			if ws.Description != "" {
				fprintf(w, "DESCRIPTION:%s\r\n", icsEscape(ws.Description))
			}
			fprintln(w, "TRANSP:TRANSPARENT")
			fprintln(w, "END:VEVENT")
		}
	}

	fprintln(w, "END:VCALENDAR")
}

// icsEscape escapes text per RFC 5545.
func icsEscape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', ';', ',':
			out = append(out, '\\', r)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func fprintln(w io.Writer, s string) {
	fprintf(w, "%s\r\n", s)
}

func fprintf(w io.Writer, format string, args ...interface{}) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		log.Printf("Error writing calendar response: %v", err)
	}
}
