package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/fieldstore-go/internal/cli/output"
	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/core/service"
)

// OrderCommand returns the order subcommand group.
func OrderCommand() *cli.Command {
	return &cli.Command{
		Name:    "order",
		Aliases: []string{"orders"},
		Usage:   "Work order lifecycle",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List orders",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "speciality", Usage: "only orders of this speciality id"},
					&cli.Int64Flag{Name: "assignee", Usage: "only orders assigned to this user code"},
					&cli.StringFlag{Name: "status", Usage: "pending, in_progress, completed, cancelled or expired"},
				},
				Action: orderList,
			},
			{
				Name:      "get",
				Usage:     "Show an order",
				ArgsUsage: "CODE",
				Action:    orderGet,
			},
			{
				Name:      "ingest",
				Usage:     "Upsert orders from a JSON array of payloads",
				ArgsUsage: "FILE|-",
				Action:    orderIngest,
			},
			{
				Name:      "start",
				Usage:     "Start a task",
				ArgsUsage: "CODE INDEX",
				Action:    orderStart,
			},
			{
				Name:      "complete",
				Usage:     "Complete a task",
				ArgsUsage: "CODE INDEX",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "observation", Usage: "task observation"},
					&cli.StringFlag{Name: "result", Usage: "measurement result"},
					&cli.StringFlag{Name: "range", Usage: "measurement range"},
					&cli.Int64Flag{Name: "by", Usage: "code of the user completing the task"},
					&cli.Int64Flag{Name: "duration", Usage: "explicit duration in seconds"},
					&cli.StringSliceFlag{Name: "field", Usage: "extra task field KEY=VALUE (repeatable)"},
				},
				Action: orderComplete,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel an order",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Usage: "cancellation reason", Required: true},
					&cli.StringFlag{Name: "detail", Usage: "cancellation detail"},
				},
				Action: orderCancel,
			},
			{
				Name:      "checklist",
				Usage:     "Merge a JSON checklist object into the order info",
				ArgsUsage: "CODE FILE|-",
				Action:    orderChecklist,
			},
			{
				Name:      "window",
				Usage:     "Show the expiration window of an order",
				ArgsUsage: "CODE",
				Action:    orderWindow,
			},
			{
				Name:      "sweep",
				Usage:     "Run the expiration sweep (all orders when no code is given)",
				ArgsUsage: "[CODE...]",
				Action:    orderSweep,
			},
		},
	}
}

func orderList(c *cli.Context) error {
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}

	var orders []*domain.Order
	switch {
	case c.IsSet("speciality"):
		orders, err = env.Lifecycle.OrdersBySpeciality(c.Context, c.Int64("speciality"))
	case c.IsSet("assignee"):
		orders, err = env.Lifecycle.OrdersByAssignee(c.Context, c.Int64("assignee"))
	default:
		orders, err = env.Lifecycle.ListOrders(c.Context)
	}
	if err != nil {
		return err
	}

	if status := c.String("status"); status != "" {
		kept := orders[:0]
		for _, o := range orders {
			if o.Status().String() == status {
				kept = append(kept, o)
			}
		}
		orders = kept
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return PrintTable(c, orders, ordersTable(orders))
}

func orderGet(c *cli.Context) error {
	code, err := argInt64(c, 0, "order code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.GetOrder(c.Context, code)
	if err != nil {
		return err
	}
	if GetSettings(c).Output == string(output.FormatTable) {
		if err := Print(c, orderSummary(o)); err != nil {
			return err
		}
		fmt.Fprintln(stdout(c))
		return Print(c, tasksTable(o))
	}
	return Print(c, o)
}

func orderIngest(c *cli.Context) error {
	data, err := readInput(c, c.Args().First())
	if err != nil {
		return err
	}
	payloads, err := decodePayloads(data)
	if err != nil {
		return err
	}

	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	result, err := env.Lifecycle.BulkUpsertOrders(c.Context, payloads)
	if err != nil {
		return err
	}
	Printf(c, "Written %d, rejected %d\n", result.Written, result.Rejected)
	if GetSettings(c).Output != string(output.FormatTable) {
		return Print(c, result)
	}
	return nil
}

// decodePayloads accepts a JSON array of order payloads or one payload.
func decodePayloads(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.ErrInvalidArgument.WithDetailsf("orders: %v", err)
	}
	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, domain.ErrInvalidArgument.WithDetailsf("orders[%d] is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, domain.ErrInvalidArgument.WithDetails("orders must be an array or an object")
	}
}

func orderStart(c *cli.Context) error {
	code, index, err := codeAndIndex(c)
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.StartTask(c.Context, code, index)
	if err != nil {
		return err
	}
	Printf(c, "Task %d of order %d started, order is %s\n", index, code, o.Status())
	return printOrderResult(c, o)
}

func orderComplete(c *cli.Context) error {
	code, index, err := codeAndIndex(c)
	if err != nil {
		return err
	}

	req := &service.CompleteTaskRequest{Observation: c.String("observation")}
	if c.IsSet("result") {
		req.Result = c.String("result")
	}
	if c.IsSet("range") {
		req.Range = c.String("range")
	}
	if c.IsSet("by") {
		v := c.Int64("by")
		req.CompletedBy = &v
	}
	if c.IsSet("duration") {
		v := c.Int64("duration")
		req.DurationSeconds = &v
	}
	for _, kv := range c.StringSlice("field") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("field %q must be KEY=VALUE", kv)
		}
		if req.Fields == nil {
			req.Fields = make(map[string]any)
		}
		req.Fields[k] = v
	}

	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.CompleteTask(c.Context, code, index, req)
	if err != nil {
		return err
	}
	Printf(c, "Task %d of order %d completed, order is %s\n", index, code, o.Status())
	return printOrderResult(c, o)
}

func orderCancel(c *cli.Context) error {
	code, err := argInt64(c, 0, "order code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.CancelOrder(c.Context, code, c.String("reason"), c.String("detail"))
	if err != nil {
		return err
	}
	Printf(c, "Order %d cancelled\n", code)
	return printOrderResult(c, o)
}

func orderChecklist(c *cli.Context) error {
	code, err := argInt64(c, 0, "order code")
	if err != nil {
		return err
	}
	data, err := readInput(c, c.Args().Get(1))
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var checklist map[string]any
	if err := dec.Decode(&checklist); err != nil {
		return domain.ErrInvalidArgument.WithDetailsf("checklist: %v", err)
	}

	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.SaveChecklist(c.Context, code, checklist)
	if err != nil {
		return err
	}
	Printf(c, "Checklist of order %d saved\n", code)
	return printOrderResult(c, o)
}

// WindowView is the printable expiration window of an order.
type WindowView struct {
	Code       int64  `json:"code"`
	Known      bool   `json:"known"`
	Start      string `json:"start,omitempty"`
	Due        string `json:"due,omitempty"`
	Expiration string `json:"expiration,omitempty"`
	Expired    bool   `json:"expired"`
	Status     string `json:"status"`
}

func orderWindow(c *cli.Context) error {
	code, err := argInt64(c, 0, "order code")
	if err != nil {
		return err
	}
	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	o, err := env.Lifecycle.GetOrder(c.Context, code)
	if err != nil {
		return err
	}
	w, ok, err := env.Lifecycle.Window(c.Context, code)
	if err != nil {
		return err
	}

	view := WindowView{Code: code, Known: ok, Status: o.Status().String()}
	if ok {
		view.Start = env.Clock.FormatDate(w.Start)
		view.Due = env.Clock.FormatDate(w.Due)
		view.Expiration = env.Clock.FormatDate(w.Expiration)
		view.Expired = w.IsExpiredOn(env.Clock.Today())
	}
	return Print(c, view)
}

func orderSweep(c *cli.Context) error {
	var codes []int64
	for i := 0; i < c.Args().Len(); i++ {
		code, err := argInt64(c, i, "order code")
		if err != nil {
			return err
		}
		codes = append(codes, code)
	}

	env, err := EnsureEnv(c)
	if err != nil {
		return err
	}
	result, err := env.Lifecycle.SweepExpirations(c.Context, codes)
	if err != nil {
		return err
	}
	return printSweep(c, result)
}

func printSweep(c *cli.Context, r *service.SweepResult) error {
	if GetSettings(c).Output != string(output.FormatTable) {
		return Print(c, r)
	}
	Printf(c, "Evaluated %d orders, expired %s, restored %s, orders version %d\n",
		r.Evaluated, codeList(r.Expired), codeList(r.Restored), r.Version)
	return nil
}

func codeAndIndex(c *cli.Context) (int64, int, error) {
	code, err := argInt64(c, 0, "order code")
	if err != nil {
		return 0, 0, err
	}
	index, err := argInt64(c, 1, "task index")
	if err != nil {
		return 0, 0, err
	}
	return code, int(index), nil
}

func printOrderResult(c *cli.Context, o *domain.Order) error {
	if GetSettings(c).Output == string(output.FormatTable) {
		return nil
	}
	return Print(c, o)
}

func codeList(codes []int64) string {
	if len(codes) == 0 {
		return "none"
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.FormatInt(c, 10)
	}
	return strings.Join(parts, ",")
}

func optionalInt(v int64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func taskProgress(o *domain.Order) string {
	done := 0
	for _, t := range o.Tasks {
		if t.Status == domain.TaskCompleted {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(o.Tasks))
}

func ordersTable(orders []*domain.Order) *output.Table {
	t := &output.Table{}
	t.SetHeaders("CODE", "STATUS", "SPECIALITY", "ASSIGNEE", "TASKS", "START+", "FREQUENCY+")
	for _, o := range orders {
		t.AddRow(
			strconv.FormatInt(o.Code, 10),
			o.Status().String(),
			optionalInt(o.Info.Speciality()),
			optionalInt(o.Info.AssignedTo()),
			taskProgress(o),
			fmt.Sprint(valueOrEmpty(o.Info[domain.InfoStartDate])),
			fmt.Sprint(valueOrEmpty(o.Info[domain.InfoFrequencyDays])),
		)
	}
	return t
}

func orderSummary(o *domain.Order) map[string]any {
	m := map[string]any{
		"code":   o.Code,
		"status": o.Status().String(),
		"tasks":  taskProgress(o),
	}
	for k, v := range o.Info {
		if k == domain.InfoStatus {
			continue
		}
		m["info."+k] = v
	}
	return m
}

func tasksTable(o *domain.Order) *output.Table {
	t := &output.Table{}
	t.SetHeaders("INDEX", "STATUS", "STARTED", "COMPLETED", "DURATION", "BY+", "OBSERVATION+")
	for i, task := range o.Tasks {
		duration, by := "", ""
		if task.DurationSeconds != nil {
			duration = strconv.FormatInt(*task.DurationSeconds, 10) + "s"
		}
		if task.CompletedBy != nil {
			by = strconv.FormatInt(*task.CompletedBy, 10)
		}
		t.AddRow(
			strconv.Itoa(i),
			taskStatusName(task.Status),
			task.InitTask,
			task.EndTask,
			duration,
			by,
			fmt.Sprint(valueOrEmpty(task.Field(domain.TaskFieldObservation))),
		)
	}
	return t
}

func taskStatusName(s domain.TaskStatus) string {
	switch s {
	case domain.TaskPending:
		return "pending"
	case domain.TaskInProgress:
		return "in_progress"
	case domain.TaskCompleted:
		return "completed"
	default:
		return strconv.Itoa(int(s))
	}
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
