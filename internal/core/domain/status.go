package domain

// DeriveStatus computes an order status from its task list: all tasks
// completed → completed; any task started or completed → in progress;
// otherwise pending. An empty list is pending.
func DeriveStatus(tasks []Task) OrderStatus {
	if len(tasks) == 0 {
		return StatusPending
	}
	completed := 0
	touched := false
	for _, t := range tasks {
		switch {
		case t.Status >= TaskCompleted:
			completed++
			touched = true
		case t.Status >= TaskInProgress:
			touched = true
		}
	}
	if completed == len(tasks) {
		return StatusCompleted
	}
	if touched {
		return StatusInProgress
	}
	return StatusPending
}

// RecomputeStatus stores the derived status unless the order is
// cancelled. Expired orders are recomputed; the expiration sweep
// re-applies status 4 while the window stays exceeded.
func (o *Order) RecomputeStatus() OrderStatus {
	if o.Info == nil {
		o.Info = Info{}
	}
	if o.Status() == StatusCancelled {
		return StatusCancelled
	}
	s := DeriveStatus(o.Tasks)
	o.Info.SetStatus(s)
	return s
}

// IsTerminal reports whether s can no longer change through task
// transitions or the expiration sweep.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
