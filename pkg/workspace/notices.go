package workspace

import "time"

// Notice is a transient user-facing error. Editing continues regardless;
// the UI shows notices until they are dismissed.
type Notice struct {
	ID      int       `json:"id"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

func (w *Workspace) notify(message string, err error) {
	w.noticeSeq++
	n := Notice{ID: w.noticeSeq, Message: message, At: time.Now()}
	if err != nil {
		n.Detail = err.Error()
	}
	w.notices = append(w.notices, n)
}

// Notices returns the undismissed notices, oldest first.
func (w *Workspace) Notices() []Notice {
	return append([]Notice(nil), w.notices...)
}

// Dismiss removes a notice. It reports whether the notice existed.
func (w *Workspace) Dismiss(id int) bool {
	for i, n := range w.notices {
		if n.ID == id {
			w.notices = append(w.notices[:i], w.notices[i+1:]...)
			return true
		}
	}
	return false
}
