package matrix

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/samber/lo"
)

// Entry is one occupied hour as returned by a solver and as persisted
type Entry struct {
	EventId     string   `json:"event_id,omitempty"`
	Day         string   `json:"day"`
	Slot        int      `json:"time_slot"`
	Subject     string   `json:"subject"`
	FacultyId   string   `json:"faculty_id,omitempty"`
	FacultyName string   `json:"faculty_name,omitempty"`
	Room        string   `json:"room"`
	Targets     []string `json:"targets"`
	Kind        string   `json:"type"`
}

// Row is one scheduled block
type Row struct {
	EventId      string     `json:"event_id"`
	Day          string     `json:"day"`
	StartSlot    int        `json:"start_slot"`
	Duration     int        `json:"duration"`
	RoomId       string     `json:"room_id"`
	FacultyId    string     `json:"faculty_id"`
	TargetGroups []string   `json:"target_groups"`
	Subject      string     `json:"subject"`
	Kind         model.Kind `json:"type"`
}

// Covers reports whether the row occupies the given day and slot
func (row Row) Covers(day string, slot int) bool {
	return row.Day == day && slot >= row.StartSlot && slot < row.StartSlot+row.Duration
}

func (row Row) overlaps(other Row) bool {
	return row.Day == other.Day && row.StartSlot < other.StartSlot+other.Duration && other.StartSlot < row.StartSlot+row.Duration
}

func (row Row) String() string {
	return fmt.Sprintf("%s@%s %d-%d in %s", row.EventId, row.Day, row.StartSlot, row.StartSlot+row.Duration-1, row.RoomId)
}

// PostSolveInvariantViolation is returned when a solver's answer breaks at least one hard constraint
type PostSolveInvariantViolation struct {
	Violations []string
}

func (err PostSolveInvariantViolation) Error() string {
	return fmt.Sprintf("solver answer violates %d invariant(s): %s", len(err.Violations), strings.Join(err.Violations, "; "))
}

// Matrix is the validated, immutable result of a generation. It exposes no mutation path.
type Matrix struct {
	id       string
	snapshot *model.Snapshot
	links    model.LinkMap
	rows     []Row
	index    index
}

// cell addresses one resource at one day and slot
type cell struct {
	kind ResourceKind
	id   string
	day  string
	slot int
}

// index is built once per matrix and answers queries without touching the snapshot
type index struct {
	institution model.Institution
	days        map[string]bool
	slots       map[int]bool
	resources   map[ResourceKind][]string
	members     map[ResourceKind]map[string]bool
	cells       map[cell]int // position in rows of the row occupying the cell
}

func newIndex(snapshot *model.Snapshot, rows []Row) index {
	institution := snapshot.Institution()
	groups := snapshot.Groups()
	slices.Sort(groups)

	idx := index{
		institution: institution,
		days:        lo.SliceToMap(institution.DaysActive, func(day string) (string, bool) { return day, true }),
		slots:       lo.SliceToMap(institution.TimeSlots, func(slot int) (int, bool) { return slot, true }),
		resources: map[ResourceKind][]string{
			RoomResource:    lo.Map(snapshot.Rooms(), func(room model.Room, _ int) string { return room.Id }),
			FacultyResource: lo.Map(snapshot.Faculty(), func(faculty model.Faculty, _ int) string { return faculty.Id }),
			GroupResource:   groups,
		},
		members: make(map[ResourceKind]map[string]bool),
		cells:   make(map[cell]int),
	}
	for kind, ids := range idx.resources {
		idx.members[kind] = lo.SliceToMap(ids, func(id string) (string, bool) { return id, true })
	}

	for i, row := range rows {
		for slot := row.StartSlot; slot < row.StartSlot+row.Duration; slot++ {
			idx.add(cell{RoomResource, row.RoomId, row.Day, slot}, i)
			idx.add(cell{FacultyResource, row.FacultyId, row.Day, slot}, i)
			for _, group := range row.TargetGroups {
				idx.add(cell{GroupResource, group, row.Day, slot}, i)
			}
		}
	}
	return idx
}

// add keeps the earliest row of a cell
func (idx index) add(key cell, row int) {
	if _, ok := idx.cells[key]; !ok {
		idx.cells[key] = row
	}
}

// Build validates a solver's answer against every hard constraint and returns a new matrix
func Build(snapshot *model.Snapshot, links model.LinkMap, entries []Entry) (*Matrix, error) {
	return Restore(uuid.NewString(), snapshot, links, entries)
}

// Restore rebuilds a matrix under an existing id. The entries go through the very same
// validation as a fresh solve.
func Restore(id string, snapshot *model.Snapshot, links model.LinkMap, entries []Entry) (*Matrix, error) {
	builder := &builder{
		snapshot:    snapshot,
		links:       links,
		institution: snapshot.Institution(),
		consumed:    make(map[string]int),
	}

	rows := builder.group(builder.resolve(entries))
	builder.checkRows(rows)
	builder.checkHours(rows)
	builder.checkOverlaps(rows)
	builder.checkRules(rows)

	if len(builder.violations) > 0 {
		return nil, PostSolveInvariantViolation{Violations: builder.violations}
	}
	return &Matrix{id: id, snapshot: snapshot, links: links, rows: rows, index: newIndex(snapshot, rows)}, nil
}

func (matrix *Matrix) Id() string {
	return matrix.id
}

func (matrix *Matrix) Snapshot() *model.Snapshot {
	return matrix.snapshot
}

// Rows returns a copy of the rows ordered by day, start slot and room
func (matrix *Matrix) Rows() []Row {
	return lo.Map(matrix.rows, func(row Row, _ int) Row {
		row.TargetGroups = slices.Clone(row.TargetGroups)
		return row
	})
}

// Entries converts the rows back into the hourly form a solver returns
func (matrix *Matrix) Entries() []Entry {
	entries := make([]Entry, 0)
	for _, row := range matrix.rows {
		faculty, _ := matrix.snapshot.FacultyById(row.FacultyId)
		for slot := row.StartSlot; slot < row.StartSlot+row.Duration; slot++ {
			entries = append(entries, Entry{
				EventId:     row.EventId,
				Day:         row.Day,
				Slot:        slot,
				Subject:     row.Subject,
				FacultyId:   row.FacultyId,
				FacultyName: faculty.Name,
				Room:        row.RoomId,
				Targets:     slices.Clone(row.TargetGroups),
				Kind:        string(row.Kind),
			})
		}
	}
	return entries
}

type resolvedEntry struct {
	Entry
	workload model.Workload
	faculty  string
}

type builder struct {
	snapshot    *model.Snapshot
	links       model.LinkMap
	institution model.Institution
	consumed    map[string]int
	violations  []string
}

func (b *builder) fail(format string, args ...any) {
	b.violations = append(b.violations, fmt.Sprintf(format, args...))
}

// resolve attaches every entry to the workload it belongs to, either by event id or by
// owning faculty, subject and targets
func (b *builder) resolve(entries []Entry) []resolvedEntry {
	resolved := make([]resolvedEntry, 0, len(entries))

	for _, entry := range entries {
		var faculty model.Faculty
		var known bool
		if entry.FacultyId != "" {
			faculty, known = b.snapshot.FacultyById(entry.FacultyId)
		} else {
			faculty, known = b.snapshot.FacultyByName(entry.FacultyName)
		}

		var workload model.Workload
		if entry.EventId != "" {
			var ok bool
			if workload, ok = b.snapshot.Workload(entry.EventId); !ok {
				b.fail("entry at %s %d references unknown event %s", entry.Day, entry.Slot, entry.EventId)
				continue
			}
		} else {
			if !known {
				b.fail("entry at %s %d references unknown faculty %q", entry.Day, entry.Slot, lo.CoalesceOrEmpty(entry.FacultyId, entry.FacultyName))
				continue
			}
			candidates := lo.Filter(faculty.Workload, func(workload model.Workload, _ int) bool {
				return workload.Subject == entry.Subject && sameSet(workload.TargetGroups, entry.Targets) &&
					(entry.Kind == "" || string(workload.Kind) == entry.Kind)
			})
			if len(candidates) == 0 {
				b.fail("entry at %s %d matches no workload of faculty %s for subject %s and targets %v", entry.Day, entry.Slot, faculty.Id, entry.Subject, entry.Targets)
				continue
			}
			workload = lo.FindOrElse(candidates, candidates[0], func(workload model.Workload) bool {
				return b.consumed[workload.Id] < workload.WeeklyHours
			})
		}
		b.consumed[workload.Id]++

		owner, _ := b.snapshot.Owner(workload.Id)
		if (entry.FacultyId != "" || entry.FacultyName != "") && (!known || faculty.Id != owner.Id) {
			b.fail("event %s is taught by %s, not by its owner %s", workload.Id, lo.CoalesceOrEmpty(entry.FacultyId, entry.FacultyName), owner.Id)
		}

		resolved = append(resolved, resolvedEntry{Entry: entry, workload: workload, faculty: owner.Id})
	}

	return resolved
}

// group merges hourly entries into rows: contiguous runs per (event, day, room) split
// into chunks of the workload's consecutive hours
func (b *builder) group(entries []resolvedEntry) []Row {
	type runKey struct{ event, day, room string }
	slotsByKey := make(map[runKey][]int)
	workloads := make(map[string]resolvedEntry)

	for _, entry := range entries {
		key := runKey{entry.workload.Id, entry.Day, entry.Room}
		if lo.Contains(slotsByKey[key], entry.Slot) {
			b.fail("event %s is scheduled twice in room %s at %s %d", entry.workload.Id, entry.Room, entry.Day, entry.Slot)
			continue
		}
		slotsByKey[key] = append(slotsByKey[key], entry.Slot)
		workloads[entry.workload.Id] = entry
	}

	rows := make([]Row, 0)
	for key, slots := range slotsByKey {
		slices.Sort(slots)
		entry := workloads[key.event]
		duration := entry.workload.ConsecutiveHours

		for _, run := range runs(slots) {
			if len(run)%duration != 0 {
				b.fail("event %s occupies %d contiguous hours from %s %d in room %s, not a multiple of its %d consecutive hours", key.event, len(run), key.day, run[0], key.room, duration)
			}
			for _, chunk := range lo.Chunk(run, duration) {
				rows = append(rows, Row{
					EventId:      key.event,
					Day:          key.day,
					StartSlot:    chunk[0],
					Duration:     len(chunk),
					RoomId:       key.room,
					FacultyId:    entry.faculty,
					TargetGroups: slices.Clone(entry.workload.TargetGroups),
					Subject:      entry.workload.Subject,
					Kind:         entry.workload.Kind,
				})
			}
		}
	}

	days := b.institution.DaysActive
	slices.SortFunc(rows, func(row1, row2 Row) int {
		return cmp.Or(
			cmp.Compare(dayIndex(days, row1.Day), dayIndex(days, row2.Day)),
			cmp.Compare(row1.StartSlot, row2.StartSlot),
			cmp.Compare(row1.RoomId, row2.RoomId),
			cmp.Compare(row1.EventId, row2.EventId),
		)
	})
	return rows
}

// runs splits sorted hours into maximal runs of consecutive hours
func runs(slots []int) [][]int {
	result := make([][]int, 0)
	for i, slot := range slots {
		if i == 0 || slot != slots[i-1]+1 {
			result = append(result, []int{slot})
			continue
		}
		result[len(result)-1] = append(result[len(result)-1], slot)
	}
	return result
}

// Unknown days sort last
func dayIndex(days []string, day string) int {
	if index := slices.Index(days, day); index >= 0 {
		return index
	}
	return len(days)
}

func (b *builder) checkRows(rows []Row) {
	for _, row := range rows {
		faculty, _ := b.snapshot.FacultyById(row.FacultyId)
		workload, _ := b.snapshot.Workload(row.EventId)

		if !lo.Contains(b.institution.DaysActive, row.Day) {
			b.fail("%s is scheduled on inactive day %s", row, row.Day)
		}
		if _, ok := b.institution.Span(row.StartSlot, row.Duration); !ok {
			b.fail("%s leaves the configured time slots or crosses lunch at %d", row, b.institution.LunchSlot)
		}
		for slot := row.StartSlot; slot < row.StartSlot+row.Duration; slot++ {
			if !faculty.Available(row.Day, slot) {
				b.fail("%s needs faculty %s at %s %d, outside its shift or blocked", row, faculty.Id, row.Day, slot)
			}
		}

		room, ok := b.snapshot.Room(row.RoomId)
		if !ok {
			b.fail("%s uses unknown room %s", row, row.RoomId)
		} else if !room.Supports(workload.RequiredTags) {
			b.fail("%s uses room %s whose tags %v lack required tags %v", row, room.Id, room.Tags, workload.RequiredTags)
		}
	}
}

// checkHours verifies that every workload is scheduled for exactly its weekly hours
func (b *builder) checkHours(rows []Row) {
	scheduled := make(map[string]int)
	for _, row := range rows {
		scheduled[row.EventId] += row.Duration
	}
	for _, workload := range b.snapshot.Workloads() {
		if scheduled[workload.Id] != workload.WeeklyHours {
			b.fail("event %s is scheduled for %d hours instead of %d", workload.Id, scheduled[workload.Id], workload.WeeklyHours)
		}
	}
}

// checkOverlaps verifies faculty, room and linked-cohort exclusivity
func (b *builder) checkOverlaps(rows []Row) {
	for i := range len(rows) - 1 {
		for j := i + 1; j < len(rows); j++ {
			row1, row2 := rows[i], rows[j]
			if !row1.overlaps(row2) {
				continue
			}
			if row1.FacultyId == row2.FacultyId {
				b.fail("faculty %s is double-booked: %s and %s", row1.FacultyId, row1, row2)
			}
			if row1.RoomId == row2.RoomId {
				b.fail("room %s is double-booked: %s and %s", row1.RoomId, row1, row2)
			}
			if b.links.Collide(row1.TargetGroups, row2.TargetGroups) {
				b.fail("cohort clash between %v and %v: %s and %s", row1.TargetGroups, row2.TargetGroups, row1, row2)
			}
		}
	}
}

// checkRules verifies that every pin is honoured by a distinct row of its event and that
// unpinned rows respect time and room restrictions
func (b *builder) checkRules(rows []Row) {
	pinned := make(map[int]bool)
	rules := b.snapshot.Rules()

	for _, rule := range rules {
		if rule.Kind != model.ForcePin {
			continue
		}
		pin := rule.Pin
		index := -1
		for i, row := range rows {
			if !pinned[i] && row.EventId == rule.Condition.Value && row.Day == pin.Day && row.StartSlot == pin.Slot && row.RoomId == pin.Room && row.FacultyId == pin.Faculty {
				index = i
				break
			}
		}
		if index < 0 {
			b.fail("pin %q of event %s at (%s, %d, %s, %s) is not honoured", rule.Id, rule.Condition.Value, pin.Day, pin.Slot, pin.Room, pin.Faculty)
			continue
		}
		pinned[index] = true
	}

	for i, row := range rows {
		if pinned[i] {
			continue
		}
		faculty, _ := b.snapshot.FacultyById(row.FacultyId)
		workload, _ := b.snapshot.Workload(row.EventId)

		for _, rule := range rules {
			if !rule.Applies(faculty, workload) {
				continue
			}
			switch rule.Kind {
			case model.RestrictTime:
				allowed := rule.Partition.Allowed(b.institution)
				if !lo.Contains(allowed, row.StartSlot) {
					b.fail("%s starts outside the %s partition required by rule %q", row, rule.Partition, rule.Id)
				}
			case model.ForceRoom:
				if row.RoomId != rule.Room {
					b.fail("%s is not in room %s required by rule %q", row, rule.Room, rule.Id)
				}
			}
		}
	}
}

func sameSet(set1, set2 []string) bool {
	sorted1, sorted2 := lo.Uniq(set1), lo.Uniq(set2)
	slices.Sort(sorted1)
	slices.Sort(sorted2)
	return slices.Equal(sorted1, sorted2)
}
