package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type RuleKind string

const (
	ForcePin     RuleKind = "FORCE_PIN"
	RestrictTime RuleKind = "RESTRICT_TIME" // bounds the start slot of matching blocks to a partition
	ForceRoom    RuleKind = "FORCE_ROOM"
)

const (
	Equals   = "EQUALS"
	Contains = "CONTAINS"
)

// Predicate selects the workloads a rule applies to
type Predicate struct {
	Field    string
	Operator string
	Value    string
}

func (predicate Predicate) Matches(faculty Faculty, workload Workload) bool {
	var candidates []string
	switch predicate.Field {
	case "subject":
		candidates = []string{workload.Subject}
	case "event_id", "id":
		candidates = []string{workload.Id}
	case "faculty_id":
		candidates = []string{faculty.Id}
	case "type":
		candidates = []string{string(workload.Kind)}
	case "target_group":
		candidates = workload.TargetGroups
	}

	return lo.SomeBy(candidates, func(candidate string) bool {
		if predicate.Operator == Contains {
			return strings.Contains(candidate, predicate.Value)
		}
		return candidate == predicate.Value
	})
}

// Pin is the exact (day, slot, room, faculty) tuple a FORCE_PIN rule collapses a block to
type Pin struct {
	Day     string
	Slot    int
	Room    string
	Faculty string
}

// Partition is a named or explicit subset of the institution's time slots
type Partition struct {
	Name  string
	Slots []int
}

const (
	Morning   = "Morning"
	Afternoon = "Afternoon"
)

// Allowed resolves the partition against the institution's slots
func (partition Partition) Allowed(institution Institution) []int {
	switch partition.Name {
	case Morning:
		return lo.Filter(institution.TimeSlots, func(slot int, _ int) bool { return slot < institution.LunchSlot })
	case Afternoon:
		return lo.Filter(institution.TimeSlots, func(slot int, _ int) bool { return slot > institution.LunchSlot })
	}
	return lo.Filter(institution.TimeSlots, func(slot int, _ int) bool { return lo.Contains(partition.Slots, slot) })
}

func (partition Partition) String() string {
	if partition.Name != "" {
		return partition.Name
	}
	return fmt.Sprint(partition.Slots)
}

// CustomRule is the parsed, tagged-variant form of a RawRule. Only the field matching
// Kind is meaningful.
type CustomRule struct {
	Id        string
	Kind      RuleKind
	Condition Predicate
	Pin       Pin
	Partition Partition
	Room      string
}

func (rule CustomRule) Applies(faculty Faculty, workload Workload) bool {
	return rule.Condition.Matches(faculty, workload)
}

var predicateFields = []string{"subject", "event_id", "id", "faculty_id", "type", "target_group"}

func ParseRule(raw RawRule) (CustomRule, error) {
	rule := CustomRule{
		Id:   raw.Id,
		Kind: RuleKind(strings.ToUpper(strings.TrimSpace(raw.ActionType))),
		Condition: Predicate{
			Field:    strings.ToLower(strings.TrimSpace(raw.ConditionField)),
			Operator: strings.ToUpper(strings.TrimSpace(raw.ConditionOperator)),
			Value:    raw.ConditionValue,
		},
	}
	if rule.Condition.Operator == "" {
		rule.Condition.Operator = Equals
	}

	if !lo.Contains(predicateFields, rule.Condition.Field) {
		return CustomRule{}, fmt.Errorf("unknown condition field %q", raw.ConditionField)
	} else if rule.Condition.Operator != Equals && rule.Condition.Operator != Contains {
		return CustomRule{}, fmt.Errorf("unknown condition operator %q", raw.ConditionOperator)
	} else if rule.Condition.Value == "" {
		return CustomRule{}, fmt.Errorf("empty condition value")
	}

	switch rule.Kind {
	case ForcePin:
		if rule.Condition.Field != "event_id" && rule.Condition.Field != "id" || rule.Condition.Operator != Equals {
			return CustomRule{}, fmt.Errorf("%s must select a single event with event_id EQUALS", ForcePin)
		}
		pin, err := parsePin(raw.ActionValue)
		if err != nil {
			return CustomRule{}, err
		}
		rule.Pin = pin
	case RestrictTime:
		partition, err := parsePartition(raw.ActionValue)
		if err != nil {
			return CustomRule{}, err
		}
		rule.Partition = partition
	case ForceRoom:
		room, ok := raw.ActionValue.(string)
		if !ok || strings.TrimSpace(room) == "" {
			return CustomRule{}, fmt.Errorf("%s expects a room id, got %v", ForceRoom, raw.ActionValue)
		}
		rule.Room = strings.TrimSpace(room)
	default:
		return CustomRule{}, fmt.Errorf("unknown action type %q", raw.ActionType)
	}

	return rule, nil
}

func parsePin(value any) (Pin, error) {
	var fields struct {
		Day     string `json:"day"`
		Slot    *int   `json:"slot"`
		Time    *int   `json:"time"`
		Room    string `json:"room"`
		Faculty string `json:"faculty"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return Pin{}, err
	}
	if err := decoder.Decode(value); err != nil {
		return Pin{}, fmt.Errorf("invalid pin %v: %w", value, err)
	}

	slot := fields.Slot
	if slot == nil {
		slot = fields.Time
	}
	if fields.Day == "" || slot == nil || fields.Room == "" || fields.Faculty == "" {
		return Pin{}, fmt.Errorf("pin must define day, slot, room and faculty: %v", value)
	}
	return Pin{Day: fields.Day, Slot: *slot, Room: fields.Room, Faculty: fields.Faculty}, nil
}

func parsePartition(value any) (Partition, error) {
	var items []any
	switch typed := value.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "morning":
			return Partition{Name: Morning}, nil
		case "afternoon":
			return Partition{Name: Afternoon}, nil
		}
		items = lo.ToAnySlice(SplitList(typed))
	case []any:
		items = typed
	case []int:
		items = lo.ToAnySlice(typed)
	case []string:
		items = lo.ToAnySlice(typed)
	default:
		return Partition{}, fmt.Errorf("unsupported time partition %v", value)
	}

	slots := make([]int, 0, len(items))
	for _, item := range items {
		slot, err := parseHour(item)
		if err != nil {
			return Partition{}, err
		}
		slots = append(slots, slot)
	}
	if len(slots) == 0 {
		return Partition{}, fmt.Errorf("empty time partition")
	}
	return Partition{Slots: lo.Uniq(slots)}, nil
}

// parseHour accepts integer hours as well as "HH:MM" strings
func parseHour(value any) (int, error) {
	switch typed := value.(type) {
	case int:
		return typed, nil
	case float64:
		return int(typed), nil
	case string:
		hour, _, _ := strings.Cut(strings.TrimSpace(typed), ":")
		parsed, err := strconv.Atoi(hour)
		if err != nil {
			return 0, fmt.Errorf("invalid hour %q", typed)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("invalid hour %v", value)
}

// Raw converts the rule back into its wire form
func (rule CustomRule) Raw() RawRule {
	raw := RawRule{
		Id:                rule.Id,
		ConditionField:    rule.Condition.Field,
		ConditionOperator: rule.Condition.Operator,
		ConditionValue:    rule.Condition.Value,
		ActionType:        string(rule.Kind),
	}
	switch rule.Kind {
	case ForcePin:
		raw.ActionValue = map[string]any{"day": rule.Pin.Day, "slot": rule.Pin.Slot, "room": rule.Pin.Room, "faculty": rule.Pin.Faculty}
	case RestrictTime:
		if rule.Partition.Name != "" {
			raw.ActionValue = rule.Partition.Name
		} else {
			raw.ActionValue = rule.Partition.Slots
		}
	case ForceRoom:
		raw.ActionValue = rule.Room
	}
	return raw
}
