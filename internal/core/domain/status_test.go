package domain

import "testing"

func tasksWith(statuses ...TaskStatus) []Task {
	tasks := make([]Task, len(statuses))
	for i, s := range statuses {
		tasks[i] = Task{Status: s}
	}
	return tasks
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  OrderStatus
	}{
		{"empty", nil, StatusPending},
		{"all pending", tasksWith(TaskPending, TaskPending), StatusPending},
		{"one started", tasksWith(TaskInProgress, TaskPending), StatusInProgress},
		{"one completed", tasksWith(TaskCompleted, TaskPending), StatusInProgress},
		{"all completed", tasksWith(TaskCompleted, TaskCompleted), StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.tasks)
			if got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
			// Pure function of the task list.
			if again := DeriveStatus(tt.tasks); again != got {
				t.Errorf("second DeriveStatus() = %v, want %v", again, got)
			}
		})
	}
}

func TestOrder_RecomputeStatus(t *testing.T) {
	o := &Order{Code: 1, Info: Info{InfoStatus: 4}, Tasks: tasksWith(TaskInProgress)}
	if got := o.RecomputeStatus(); got != StatusInProgress {
		t.Errorf("expired order recomputed to %v, want in_progress", got)
	}

	o = &Order{Code: 2, Info: Info{InfoStatus: 3}, Tasks: tasksWith(TaskCompleted)}
	if got := o.RecomputeStatus(); got != StatusCancelled {
		t.Errorf("cancelled order recomputed to %v, want cancelled", got)
	}
	if o.Status() != StatusCancelled {
		t.Errorf("stored status = %v, want cancelled", o.Status())
	}

	o = &Order{Code: 3}
	o.RecomputeStatus()
	if o.Status() != StatusPending {
		t.Errorf("nil info status = %v, want pending", o.Status())
	}
}
