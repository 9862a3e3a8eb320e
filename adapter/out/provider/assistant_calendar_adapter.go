package provider

import (
	"context"
	"fmt"
	"log"
	"time"

	"assistant_server/core/domain"
	"assistant_server/pkg/apperr"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"golang.org/x/oauth2"
)

// =============================================================================
// Google Calendar Adapter
// =============================================================================

// Working-hours window for suggestions.
const (
	workdayStartHour = 9
	workdayEndHour   = 17
	maxSuggestions   = 3
)

// slotTimeFormat renders "Monday, January 2 at 3:04 PM".
const slotTimeFormat = "Monday, January 2 at 3:04 PM"

// CalendarAdapter implements out.CalendarProvider against Google Calendar.
type CalendarAdapter struct {
	config   *oauth2.Config
	token    *oauth2.Token
	timezone *time.Location
	tzName   string

	// now is swappable for tests.
	now func() time.Time
}

// CalendarConfig holds calendar adapter configuration.
type CalendarConfig struct {
	CredentialsFile string
	TokenFile       string
	Timezone        string
}

// NewCalendarAdapter creates a calendar adapter from the stored credential
// files.
func NewCalendarAdapter(cfg *CalendarConfig) (*CalendarAdapter, error) {
	config, err := loadOAuthConfig(cfg.CredentialsFile, calendar.CalendarScope)
	if err != nil {
		return nil, err
	}

	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	tzName := cfg.Timezone
	if tzName == "" {
		tzName = "America/New_York"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, apperr.ConfigError("calendar", fmt.Sprintf("unknown timezone %q", tzName)).WithError(err)
	}

	return &CalendarAdapter{
		config:   config,
		token:    token,
		timezone: loc,
		tzName:   tzName,
		now:      time.Now,
	}, nil
}

// FreeBusy returns busy intervals on the primary calendar between start and
// end.
func (a *CalendarAdapter) FreeBusy(ctx context.Context, start, end time.Time) ([]domain.BusyInterval, error) {
	svc, err := a.getService(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, apperr.Transport("calendar", err).WithDetail("operation", "freebusy")
	}

	cal, ok := resp.Calendars["primary"]
	if !ok {
		return nil, nil
	}

	intervals := make([]domain.BusyInterval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		busyStart, err1 := time.Parse(time.RFC3339, b.Start)
		busyEnd, err2 := time.Parse(time.RFC3339, b.End)
		if err1 != nil || err2 != nil {
			log.Printf("[CalendarAdapter] skipping unparseable busy interval %s..%s", b.Start, b.End)
			continue
		}
		intervals = append(intervals, domain.BusyInterval{Start: busyStart, End: busyEnd})
	}
	return intervals, nil
}

// SuggestTimes scans working hours over the coming days and returns up to
// three open slots. Weekends are skipped.
func (a *CalendarAdapter) SuggestTimes(ctx context.Context, durationMinutes, daysAhead int) ([]domain.TimeSlot, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	if daysAhead <= 0 {
		daysAhead = 7
	}

	startDate := a.now().In(a.timezone)
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		workdayStartHour, 0, 0, 0, a.timezone)

	var suggestions []domain.TimeSlot
	for day := 0; day < daysAhead && len(suggestions) < maxSuggestions; day++ {
		current := startDate.AddDate(0, 0, day)
		if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		for hour := workdayStartHour; hour < workdayEndHour && len(suggestions) < maxSuggestions; hour++ {
			slotStart := time.Date(current.Year(), current.Month(), current.Day(),
				hour, 0, 0, 0, a.timezone)
			slotEnd := slotStart.Add(time.Duration(durationMinutes) * time.Minute)

			busy, err := a.FreeBusy(ctx, slotStart, slotEnd)
			if err != nil {
				return nil, err
			}
			if len(busy) > 0 {
				continue
			}

			suggestions = append(suggestions, domain.TimeSlot{
				Start:          slotStart,
				End:            slotEnd,
				FormattedStart: slotStart.Format(slotTimeFormat),
				FormattedEnd:   slotEnd.Format("3:04 PM"),
			})
		}
	}

	return suggestions, nil
}

// CreateEvent creates a calendar event and returns its id.
func (a *CalendarAdapter) CreateEvent(ctx context.Context, title string, start, end time.Time, attendees []string, description string) (string, error) {
	svc, err := a.getService(ctx)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: a.tzName,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: a.tzName,
		},
	}
	for _, email := range attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", apperr.Transport("calendar", err).WithDetail("operation", "create_event")
	}
	return created.Id, nil
}

func (a *CalendarAdapter) getService(ctx context.Context) (*calendar.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, a.token),
	))
	if err != nil {
		return nil, apperr.Transport("calendar", err).WithDetail("operation", "create_service")
	}
	return svc, nil
}
