package batch

// Stats is a point-in-time count of tasks per state. The JSON field
// names appear in the statistics block of exported results and must
// stay stable.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// SuccessRate returns the completed share of all tracked tasks as a
// percentage. Zero when nothing has been tracked yet.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// QueueStatus returns counts of pending, running, completed, and
// failed tasks plus their sum. It never mutates task state.
func (p *Processor) QueueStatus() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{
		Pending:   len(p.queue),
		Running:   len(p.running),
		Completed: len(p.completed),
		Failed:    len(p.failed),
	}
	stats.Total = stats.Pending + stats.Running + stats.Completed + stats.Failed
	return stats
}

// logSummary emits the end-of-run processing summary.
func (p *Processor) logSummary() {
	stats := p.QueueStatus()

	p.logger.Info("batch processing complete",
		"total", stats.Total,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"success_rate", stats.SuccessRate())
}
