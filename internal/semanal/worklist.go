// # internal/semanal/worklist.go
package semanal

// Worklist holds analysis targets pending (re)processing. Pop removes from
// the tail, so a round that pushes its deferrals in processing order will
// replay them in reverse on the next round. Deferral order is part of the
// scheduler contract: reprocessing in reverse tends to resolve chains of
// dependent definitions with fewer iterations.
type Worklist struct {
	items []string
}

func (w *Worklist) Push(target string) {
	w.items = append(w.items, target)
}

// Pop returns the most recently pushed target.
func (w *Worklist) Pop() (string, bool) {
	if len(w.items) == 0 {
		return "", false
	}
	t := w.items[len(w.items)-1]
	w.items = w.items[:len(w.items)-1]
	return t, true
}

func (w *Worklist) Len() int {
	return len(w.items)
}
