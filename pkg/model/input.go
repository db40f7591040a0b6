package model

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type Kind string

const (
	Theory    Kind = "Theory"
	Practical Kind = "Practical"
	Tutorial  Kind = "Tutorial"
)

type BlockedSlot struct {
	Day  string `json:"day"`
	Time int    `json:"time"`
}

type Workload struct {
	Id               string   `json:"id"`
	Kind             Kind     `json:"type"`
	Subject          string   `json:"subject"`
	TargetGroups     []string `json:"target_groups"`
	WeeklyHours      int      `json:"hours"`
	ConsecutiveHours int      `json:"consecutive_hours"`
	RequiredTags     []string `json:"required_tags"`
}

// Blocks returns the number of contiguous occurrences the workload is split into
func (workload Workload) Blocks() int {
	if workload.ConsecutiveHours <= 0 {
		return 0
	}
	return workload.WeeklyHours / workload.ConsecutiveHours
}

type Faculty struct {
	Id              string        `json:"id"`
	Name            string        `json:"name"`
	Shift           []int         `json:"shift"`
	MaxLoadHrs      int           `json:"max_load_hrs"`
	BlockedSlots    []BlockedSlot `json:"blocked_slots"`
	ClassTeacherFor *string       `json:"class_teacher_for"`
	Workload        []Workload    `json:"workload"`
}

// Load returns the sum of weekly hours over every workload owned by the faculty
func (faculty Faculty) Load() int {
	return lo.SumBy(faculty.Workload, func(workload Workload) int { return workload.WeeklyHours })
}

// Available checks whether the faculty is on shift and not blocked at the given day and hour
func (faculty Faculty) Available(day string, hour int) bool {
	return lo.Contains(faculty.Shift, hour) && !lo.ContainsBy(faculty.BlockedSlots, func(blocked BlockedSlot) bool {
		return blocked.Day == day && blocked.Time == hour
	})
}

type Room struct {
	Id       string   `json:"id"`
	Type     string   `json:"type"`
	Capacity int      `json:"capacity"`
	Tags     []string `json:"tags"`
}

// Supports checks whether the room's tags are a superset of the required ones
func (room Room) Supports(requiredTags []string) bool {
	return lo.Every(room.Tags, requiredTags)
}

// RawRule is the wire form of a custom rule as produced by the ingestion layer
type RawRule struct {
	Id                string `json:"id"`
	ConditionField    string `json:"condition_field"`
	ConditionOperator string `json:"condition_operator"`
	ConditionValue    string `json:"condition_value"`
	ActionType        string `json:"action_type"`
	ActionValue       any    `json:"action_value"`
}

type Institution struct {
	DaysActive            []string  `json:"days_active"`
	TimeSlots             []int     `json:"time_slots"`
	LunchSlot             int       `json:"lunch_slot"`
	MaxContinuousLectures int       `json:"max_continuous_lectures"`
	CustomRules           []RawRule `json:"custom_rules"`
}

// Span returns the hours covered by a block of the given duration starting at start.
// The second value is false when the span leaves the configured time slots, is not
// contiguous or crosses the lunch slot.
func (institution Institution) Span(start, duration int) ([]int, bool) {
	span := make([]int, 0, duration)
	for hour := start; hour < start+duration; hour++ {
		if hour == institution.LunchSlot || !lo.Contains(institution.TimeSlots, hour) {
			return nil, false
		}
		span = append(span, hour)
	}
	return span, duration > 0
}

// WorkingSlots returns every configured slot except lunch
func (institution Institution) WorkingSlots() []int {
	return lo.Filter(institution.TimeSlots, func(slot int, _ int) bool { return slot != institution.LunchSlot })
}

type RoomsConfig struct {
	Rooms []Room `json:"rooms"`
}

// Input is the generation payload exchanged with the ingestion layer and the external solver
type Input struct {
	CollegeSettings Institution `json:"college_settings"`
	RoomsConfig     RoomsConfig `json:"rooms_config"`
	Faculty         []Faculty   `json:"faculty"`
}

func InputFromJson(file string) (Input, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Input{}, fmt.Errorf("cannot read input file: %w", err)
	}
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return Input{}, err
	}
	return DecodeInput(inputJson)
}

// DecodeInput decodes a loosely typed payload. List-valued fields may arrive as
// delimiter-separated strings, in which case they are split and trimmed.
func DecodeInput(raw map[string]any) (Input, error) {
	var input Input
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       splitListHook,
		Result:           &input,
	})
	if err != nil {
		return Input{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Input{}, fmt.Errorf("cannot decode input: %w", err)
	}
	return input, nil
}

// SplitList splits a delimiter-separated cell into its trimmed, non-empty items
func SplitList(cell string) []string {
	items := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
	items = lo.Map(items, func(item string, _ int) string { return strings.TrimSpace(item) })
	return lo.Compact(items)
}

func splitListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	return SplitList(reflect.ValueOf(data).String()), nil
}

func (input Input) clone() Input {
	output := Input{
		CollegeSettings: Institution{
			DaysActive:            cloneSlice(input.CollegeSettings.DaysActive),
			TimeSlots:             cloneSlice(input.CollegeSettings.TimeSlots),
			LunchSlot:             input.CollegeSettings.LunchSlot,
			MaxContinuousLectures: input.CollegeSettings.MaxContinuousLectures,
			CustomRules:           cloneSlice(input.CollegeSettings.CustomRules),
		},
		RoomsConfig: RoomsConfig{
			Rooms: lo.Map(input.RoomsConfig.Rooms, func(room Room, _ int) Room { return room.clone() }),
		},
		Faculty: lo.Map(input.Faculty, func(faculty Faculty, _ int) Faculty { return faculty.clone() }),
	}
	if output.CollegeSettings.MaxContinuousLectures == 0 {
		output.CollegeSettings.MaxContinuousLectures = 2
	}
	return output
}

func (room Room) clone() Room {
	room.Tags = cloneSlice(room.Tags)
	return room
}

func (faculty Faculty) clone() Faculty {
	faculty.Shift = cloneSlice(faculty.Shift)
	faculty.BlockedSlots = cloneSlice(faculty.BlockedSlots)
	if faculty.ClassTeacherFor != nil {
		group := *faculty.ClassTeacherFor
		faculty.ClassTeacherFor = &group
	}
	faculty.Workload = lo.Map(faculty.Workload, func(workload Workload, _ int) Workload { return workload.clone() })
	return faculty
}

func (workload Workload) clone() Workload {
	workload.TargetGroups = cloneSlice(workload.TargetGroups)
	workload.RequiredTags = cloneSlice(workload.RequiredTags)
	if workload.ConsecutiveHours == 0 {
		workload.ConsecutiveHours = 1
	}
	return workload
}

// cloneSlice copies a slice, turning nil into an empty slice so that empty cells stay empty sets
func cloneSlice[T any](values []T) []T {
	result := make([]T, len(values))
	copy(result, values)
	return result
}
