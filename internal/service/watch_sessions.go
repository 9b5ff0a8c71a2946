package service

import "fmt"

// WatchSessions keeps the open watch sessions of this process, keyed by the
// browser session and course. Nothing here survives a restart.
type WatchSessions struct {
	*Registry[*ProgressTracker]
}

func NewWatchSessions() *WatchSessions {
	return &WatchSessions{
		Registry: NewRegistry(func(t *ProgressTracker) { t.Close() }),
	}
}

func WatchSessionKey(sessionID string, courseID int64) string {
	return fmt.Sprintf("%s:%d", sessionID, courseID)
}

func (s *WatchSessions) CloseAll() {
	s.Clear()
}
