package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Info keys read and written by the store. Orders are ingested from
// heterogeneous payloads, so info otherwise stays an open mapping.
const (
	InfoStatus        = "status"
	InfoStartDate     = "F inicial"
	InfoFrequencyDays = "Frec. Dias"
	InfoSpeciality    = "especialidad_id"
	InfoAssignedTo    = "asignado_a"
	InfoCancelObs     = "obs_anulada"
	InfoCancelledAt   = "fecha_anulada"
	InfoStartedAt     = "fecha_inicio"
	InfoFinishedAt    = "fecha_fin"
	InfoActualHours   = "hs_reales"
	InfoChecklist     = "checklist"
	InfoChecklistAt   = "checklist_actualizado"
)

// Legacy spellings accepted when reading speciality and assignee.
var (
	specialityKeys = []string{InfoSpeciality, "especialidad", "Especialidad", "speciality"}
	assigneeKeys   = []string{InfoAssignedTo, "asignado", "Asignado", "assigned_to"}
)

// Task field names in the wire format.
const (
	TaskFieldStatus          = "status"
	TaskFieldInitTask        = "init_task"
	TaskFieldEndTask         = "end_task"
	TaskFieldAcceptedAt      = "accepted_at"
	TaskFieldCompletedAt     = "completed_at"
	TaskFieldDurationSeconds = "duration_seconds"
	TaskFieldCompletedBy     = "completed_by"
	TaskFieldObservation     = "observacion"
	TaskFieldResult          = "resultado"
	TaskFieldRange           = "rango"
)

// TaskStatus is the state of a single task.
type TaskStatus int

const (
	TaskPending    TaskStatus = 0
	TaskInProgress TaskStatus = 1
	TaskCompleted  TaskStatus = 2
)

// OrderStatus is the stored order state. Pending, in-progress and
// completed are derived from tasks; cancelled and expired are set only by
// cancellation and the expiration sweep.
type OrderStatus int

const (
	StatusPending    OrderStatus = 0
	StatusInProgress OrderStatus = 1
	StatusCompleted  OrderStatus = 2
	StatusCancelled  OrderStatus = 3
	StatusExpired    OrderStatus = 4
)

// String returns the status name.
func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Info is the open mapping holding an order's status, assignment, dates,
// speciality and cancellation observations.
type Info map[string]any

// Status returns the stored status, pending when absent or unknown.
func (i Info) Status() OrderStatus {
	n, ok := ParseInteger(i[InfoStatus])
	if !ok || n < int64(StatusPending) || n > int64(StatusExpired) {
		return StatusPending
	}
	return OrderStatus(n)
}

// SetStatus stores s.
func (i Info) SetStatus(s OrderStatus) {
	i[InfoStatus] = int(s)
}

// Speciality returns the order's speciality id.
func (i Info) Speciality() (int64, bool) {
	return i.lookupInteger(specialityKeys)
}

// AssignedTo returns the code of the assigned user.
func (i Info) AssignedTo() (int64, bool) {
	return i.lookupInteger(assigneeKeys)
}

func (i Info) lookupInteger(keys []string) (int64, bool) {
	for _, k := range keys {
		if v, ok := i[k]; ok {
			if n, ok := ParseInteger(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// CancelObservation returns the [reason, detail] pair, nil when absent.
func (i Info) CancelObservation() []string {
	switch v := i[InfoCancelObs].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprint(item)
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// SetCancelObservation stores the [reason, detail] pair.
func (i Info) SetCancelObservation(reason, detail string) {
	i[InfoCancelObs] = []any{reason, detail}
}

// Text returns the trimmed string stored under key.
func (i Info) Text(key string) string {
	s, _ := stringValue(i[key])
	return s
}

// Task is one unit of work inside an order. Fields holds the free-form
// measurement and observation data carried by the payload.
type Task struct {
	Status          TaskStatus
	InitTask        string
	EndTask         string
	AcceptedAt      string
	CompletedAt     string
	DurationSeconds *int64
	CompletedBy     *int64
	Fields          map[string]any
}

// Clone creates a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.DurationSeconds != nil {
		d := *t.DurationSeconds
		c.DurationSeconds = &d
	}
	if t.CompletedBy != nil {
		b := *t.CompletedBy
		c.CompletedBy = &b
	}
	c.Fields = cloneMap(t.Fields)
	return c
}

// Field returns a free-form field.
func (t Task) Field(key string) any {
	return t.Fields[key]
}

// SetField stores a free-form field.
func (t *Task) SetField(key string, v any) {
	if t.Fields == nil {
		t.Fields = make(map[string]any)
	}
	t.Fields[key] = v
}

// MarshalJSON flattens known and free-form fields into one object.
func (t Task) MarshalJSON() ([]byte, error) {
	m := cloneMap(t.Fields)
	if m == nil {
		m = make(map[string]any)
	}
	m[TaskFieldStatus] = int(t.Status)
	putString(m, TaskFieldInitTask, t.InitTask)
	putString(m, TaskFieldEndTask, t.EndTask)
	putString(m, TaskFieldAcceptedAt, t.AcceptedAt)
	putString(m, TaskFieldCompletedAt, t.CompletedAt)
	if t.DurationSeconds != nil {
		m[TaskFieldDurationSeconds] = *t.DurationSeconds
	}
	if t.CompletedBy != nil {
		m[TaskFieldCompletedBy] = *t.CompletedBy
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits an object into known and free-form fields.
func (t *Task) UnmarshalJSON(data []byte) error {
	m, err := decodeJSONMap(data)
	if err != nil {
		return err
	}
	*t = taskFromMap(m)
	return nil
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func taskFromMap(m map[string]any) Task {
	fields := cloneMap(m)
	var t Task

	if n, ok := ParseInteger(fields[TaskFieldStatus]); ok && n >= int64(TaskPending) && n <= int64(TaskCompleted) {
		t.Status = TaskStatus(n)
	}
	delete(fields, TaskFieldStatus)

	t.InitTask = takeTimeField(fields, TaskFieldInitTask)
	t.EndTask = takeTimeField(fields, TaskFieldEndTask)
	t.AcceptedAt = takeTimeField(fields, TaskFieldAcceptedAt)
	t.CompletedAt = takeTimeField(fields, TaskFieldCompletedAt)

	if v, ok := fields[TaskFieldDurationSeconds]; ok {
		if f, ok := ParseNumber(v); ok {
			d := int64(math.Max(0, math.Floor(f)))
			t.DurationSeconds = &d
			delete(fields, TaskFieldDurationSeconds)
		}
	}
	if v, ok := fields[TaskFieldCompletedBy]; ok {
		if n, ok := ParseInteger(v); ok {
			t.CompletedBy = &n
			delete(fields, TaskFieldCompletedBy)
		}
	}

	if len(fields) > 0 {
		t.Fields = fields
	}
	return t
}

// takeTimeField moves a timestamp-like field out of fields as a string.
// Numbers are kept in their textual form (epoch milliseconds).
func takeTimeField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	switch val := v.(type) {
	case nil:
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	case float64:
		s = fmt.Sprintf("%.0f", val)
	case int64:
		s = fmt.Sprint(val)
	default:
		// Unknown shape: leave it as a free-form field.
		return ""
	}
	delete(fields, key)
	return s
}

// Order is a maintenance work order. It exclusively owns its task
// sequence (tasks.data). Extra and TasksExtra keep payload fields the
// store does not interpret so round trips are lossless.
type Order struct {
	Code       int64
	Info       Info
	Tasks      []Task
	Extra      map[string]any
	TasksExtra map[string]any
}

// Clone creates a deep copy of the order.
func (o *Order) Clone() *Order {
	c := &Order{
		Code:       o.Code,
		Info:       Info(cloneMap(o.Info)),
		Extra:      cloneMap(o.Extra),
		TasksExtra: cloneMap(o.TasksExtra),
	}
	if c.Info == nil {
		c.Info = Info{}
	}
	if o.Tasks != nil {
		c.Tasks = make([]Task, len(o.Tasks))
		for i, t := range o.Tasks {
			c.Tasks[i] = t.Clone()
		}
	}
	return c
}

// Status returns the stored order status.
func (o *Order) Status() OrderStatus {
	return o.Info.Status()
}

// Task returns a pointer to the task at index for in-place edits on a
// cloned order. Fails with ErrTaskNotFound when the index is invalid.
func (o *Order) Task(index int) (*Task, error) {
	if index < 0 || index >= len(o.Tasks) {
		return nil, ErrTaskNotFound.WithDetailsf("order %d has no task %d", o.Code, index)
	}
	return &o.Tasks[index], nil
}

// MarshalJSON renders {code, info, tasks:{data}} plus preserved fields.
func (o Order) MarshalJSON() ([]byte, error) {
	m := cloneMap(o.Extra)
	if m == nil {
		m = make(map[string]any)
	}
	m["code"] = o.Code

	info := o.Info
	if info == nil {
		info = Info{}
	}
	m["info"] = map[string]any(info)

	tasks := cloneMap(o.TasksExtra)
	if tasks == nil {
		tasks = make(map[string]any)
	}
	data := o.Tasks
	if data == nil {
		data = []Task{}
	}
	tasks["data"] = data
	m["tasks"] = tasks

	return json.Marshal(m)
}

// UnmarshalJSON reads a stored order. The code must be present under
// "code"; heterogeneous ingestion payloads go through NewOrderFromPayload.
func (o *Order) UnmarshalJSON(data []byte) error {
	m, err := decodeJSONMap(data)
	if err != nil {
		return err
	}
	code, ok := ParseInteger(m["code"])
	if !ok {
		return ErrOrderValidation.WithDetails("order code is missing or not an integer")
	}
	*o = *orderFromMap(m, code)
	return nil
}

// orderFromMap builds an order from a raw payload using code as its key.
func orderFromMap(raw map[string]any, code int64) *Order {
	o := &Order{Code: code, Info: Info{}}

	extra := cloneMap(raw)
	delete(extra, "code")

	if info, ok := extra["info"].(map[string]any); ok {
		o.Info = Info(info)
	}
	delete(extra, "info")

	switch tasks := extra["tasks"].(type) {
	case map[string]any:
		if data, ok := tasks["data"].([]any); ok {
			o.Tasks = tasksFromSlice(data)
		}
		rest := make(map[string]any)
		for k, v := range tasks {
			if k != "data" {
				rest[k] = v
			}
		}
		if len(rest) > 0 {
			o.TasksExtra = rest
		}
		delete(extra, "tasks")
	case []any:
		o.Tasks = tasksFromSlice(tasks)
		delete(extra, "tasks")
	}

	if len(extra) > 0 {
		o.Extra = extra
	}
	return o
}

func tasksFromSlice(data []any) []Task {
	out := make([]Task, 0, len(data))
	for _, item := range data {
		if m, ok := item.(map[string]any); ok {
			out = append(out, taskFromMap(m))
		}
	}
	return out
}

// hasTaskList reports whether a raw payload carries a task sequence.
func hasTaskList(raw map[string]any) bool {
	switch tasks := raw["tasks"].(type) {
	case map[string]any:
		_, ok := tasks["data"].([]any)
		return ok
	case []any:
		return true
	}
	return false
}
