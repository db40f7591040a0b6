package solver

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/mitchellh/mapstructure"
)

// scheduleEntry accepts every spelling external solvers use for the same field
type scheduleEntry struct {
	EventId     string   `mapstructure:"event_id"`
	Day         string   `mapstructure:"day"`
	TimeSlot    *int     `mapstructure:"time_slot"`
	Slot        *int     `mapstructure:"slot"`
	Subject     string   `mapstructure:"subject"`
	FacultyId   string   `mapstructure:"faculty_id"`
	FacultyName string   `mapstructure:"faculty_name"`
	Room        string   `mapstructure:"room"`
	Targets     []string `mapstructure:"targets"`
	Target      []string `mapstructure:"target"`
	Type        string   `mapstructure:"type"`
}

type response struct {
	Status           string `mapstructure:"status"`
	Message          string `mapstructure:"message"`
	Detail           any    `mapstructure:"detail"`
	ValidationErrors []any  `mapstructure:"validation_errors"`
	Schedule         []any  `mapstructure:"schedule"`
}

// decodeResponse classifies a successful solver body: a schedule becomes entries, an
// explicit infeasible status becomes SolverInfeasible, anything else is a protocol error
func decodeResponse(body map[string]any) ([]matrix.Entry, error) {
	var resp response
	if err := decode(body, &resp); err != nil {
		return nil, SolverProtocolError{Reason: "malformed response", Err: err}
	}

	if strings.EqualFold(resp.Status, "infeasible") {
		return nil, SolverInfeasible{Reason: reason(resp)}
	}
	if _, ok := body["schedule"]; !ok {
		return nil, SolverProtocolError{Reason: "response has no schedule"}
	}

	entries := make([]matrix.Entry, 0, len(resp.Schedule))
	for i, item := range resp.Schedule {
		var raw scheduleEntry
		if err := decode(item, &raw); err != nil {
			return nil, SolverProtocolError{Reason: fmt.Sprintf("malformed schedule entry %d", i), Err: err}
		}

		slot := raw.TimeSlot
		if slot == nil {
			slot = raw.Slot
		}
		targets := raw.Targets
		if len(targets) == 0 {
			targets = raw.Target
		}
		if raw.Day == "" || slot == nil || raw.Room == "" || raw.FacultyId == "" && raw.FacultyName == "" {
			return nil, SolverProtocolError{Reason: fmt.Sprintf("schedule entry %d lacks day, time slot, room or faculty: %v", i, item)}
		}

		entries = append(entries, matrix.Entry{
			EventId:     raw.EventId,
			Day:         raw.Day,
			Slot:        *slot,
			Subject:     raw.Subject,
			FacultyId:   raw.FacultyId,
			FacultyName: raw.FacultyName,
			Room:        raw.Room,
			Targets:     targets,
			Kind:        raw.Type,
		})
	}
	return entries, nil
}

func reason(resp response) string {
	switch {
	case resp.Message != "":
		return resp.Message
	case len(resp.ValidationErrors) > 0:
		return fmt.Sprintf("%v", resp.ValidationErrors)
	case resp.Detail != nil:
		return fmt.Sprintf("%v", resp.Detail)
	}
	return "no reason given"
}

func decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(hourHook, listHook),
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// hourHook accepts "HH:MM" strings for integer slots
func hourHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	hour, _, _ := strings.Cut(strings.TrimSpace(reflect.ValueOf(data).String()), ":")
	value, err := strconv.Atoi(hour)
	if err != nil {
		return nil, fmt.Errorf("invalid hour %q", data)
	}
	return value, nil
}

// listHook accepts a single delimiter-separated string for list fields
func listHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	return model.SplitList(reflect.ValueOf(data).String()), nil
}
