// Package gcal mirrors generated shift events into a user's Google
// Calendar when a request carries an OAuth access token. The push is
// best-effort: the ICS response never depends on it.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

// Pusher upserts events into one calendar.
type Pusher struct {
	svc        *calendar.Service
	calendarID string
}

// NewPusher builds a calendar client from a bearer access token, as
// handed over by the frontend's Google login.
func NewPusher(ctx context.Context, accessToken string) (*Pusher, error) {
	if accessToken == "" {
		return nil, errors.New("empty access token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &Pusher{svc: svc, calendarID: "primary"}, nil
}

// UpsertShifts writes each event into the calendar: if the day already
// holds an event with the same summary it is moved to the new times,
// otherwise a new event is inserted. Failures on individual events are
// collected and joined so one bad day does not stop the rest.
func (p *Pusher) UpsertShifts(ctx context.Context, events []model.CalendarEvent) (created, updated int, err error) {
	var errs []error
	for _, ev := range events {
		did, uerr := p.upsertOne(ctx, ev)
		if uerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.UID, uerr))
			continue
		}
		if did {
			updated++
		} else {
			created++
		}
	}
	return created, updated, errors.Join(errs...)
}

func (p *Pusher) upsertOne(ctx context.Context, ev model.CalendarEvent) (updatedExisting bool, err error) {
	dayStart := time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 0, 0, 0, 0, ev.Start.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	list, err := p.svc.Events.List(p.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("list day: %w", err)
	}

	start := &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Timezone}
	end := &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.Timezone}

	for _, item := range list.Items {
		if item.Summary != ev.Summary {
			continue
		}
		item.Start = start
		item.End = end
		if _, err := p.svc.Events.Update(p.calendarID, item.Id, item).Context(ctx).Do(); err != nil {
			return false, fmt.Errorf("update: %w", err)
		}
		appLog.Debug("calendar event updated", "summary", ev.Summary, "day", dayStart.Format("2006-01-02"))
		return true, nil
	}

	_, err = p.svc.Events.Insert(p.calendarID, &calendar.Event{
		Summary: ev.Summary,
		Start:   start,
		End:     end,
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	appLog.Debug("calendar event created", "summary", ev.Summary, "day", dayStart.Format("2006-01-02"))
	return false, nil
}
