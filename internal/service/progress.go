package service

import (
	"context"
	"math"
	"sync"

	"learner-portal/internal/config"
	"learner-portal/internal/model"
	"learner-portal/internal/repository"

	"github.com/rs/zerolog"
)

type LessonState struct {
	model.Lesson
	Completed bool `json:"completed"`
	Active    bool `json:"active"`
	Locked    bool `json:"locked"`
}

type WatchState struct {
	CourseID        int64         `json:"course_id"`
	Lessons         []LessonState `json:"lessons"`
	ActiveLesson    *model.Lesson `json:"active_lesson"`
	Completed       []int64       `json:"completed"`
	Total           int           `json:"total"`
	ProgressPercent int           `json:"progress_percent"`
	Complete        bool          `json:"complete"`
	WatchedPercent  float64       `json:"watched_percent"`
	CanMarkComplete bool          `json:"can_mark_complete"`
	Locked          bool          `json:"locked"`
	Notice          string        `json:"notice,omitempty"`
	Empty           bool          `json:"empty"`
}

// ProgressTracker owns one watch session: the active lesson and the set of
// lessons completed in it. The set only ever holds accessible lessons and
// only grows.
type ProgressTracker struct {
	courseID int64
	viewer   model.Viewer
	lessons  []*model.Lesson
	gate     *WatchGate
	store    repository.CompletionRepository
	log      zerolog.Logger

	mu        sync.Mutex
	active    *model.Lesson
	completed map[int64]struct{}
	notice    string
	closed    bool
}

// NewProgressTracker opens a session over lessons. store may be nil, in which
// case completions live only as long as the session.
func NewProgressTracker(
	ctx context.Context,
	courseID int64,
	viewer model.Viewer,
	lessons []*model.Lesson,
	requestedID int64,
	watchCfg *config.Watch,
	store repository.CompletionRepository,
	log zerolog.Logger,
) *ProgressTracker {
	t := &ProgressTracker{
		courseID:  courseID,
		viewer:    viewer,
		lessons:   lessons,
		gate:      NewWatchGate(watchCfg),
		store:     store,
		log:       log,
		completed: make(map[int64]struct{}),
	}

	t.seed(ctx)

	active, ok := SelectActiveLesson(lessons, requestedID)
	if !ok {
		t.log.Debug().Int64("course_id", courseID).Msg("course has no lessons")
		return t
	}

	t.mu.Lock()
	t.setActiveLocked(active)
	if IsLocked(viewer, active) {
		t.notice = "you do not have access to this lesson, complete your payment or contact support"
	}
	t.mu.Unlock()

	return t
}

func (t *ProgressTracker) seed(ctx context.Context) {
	if t.store == nil || !t.viewer.Authenticated {
		return
	}

	ids, err := t.store.ListCompleted(ctx, t.viewer.UserID, t.courseID)
	if err != nil {
		t.log.Warn().Err(err).Int64("course_id", t.courseID).Msg("load stored completions")
		return
	}

	for _, id := range ids {
		idx := lessonIndex(t.lessons, id)
		if idx >= 0 && t.lessons[idx].IsAccessible {
			t.completed[id] = struct{}{}
		}
	}
}

// ViewerID is the user the session was opened for.
func (t *ProgressTracker) ViewerID() int64 {
	return t.viewer.UserID
}

func (t *ProgressTracker) Active() *model.Lesson {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Select switches to a lesson picked from the playlist. Inaccessible lessons
// are refused with a notice.
func (t *ProgressTracker) Select(lessonID int64) (*model.Lesson, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrSessionClosed
	}

	lesson, err := SelectLesson(t.lessons, lessonID)
	if err != nil {
		t.notice = err.Error()
		return nil, err
	}

	t.setActiveLocked(lesson)
	return lesson, nil
}

func (t *ProgressTracker) OnWatchProgress(percent float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.active == nil {
		return false
	}
	return t.gate.OnWatchProgress(t.active.ID, percent)
}

func (t *ProgressTracker) CanMarkComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canMarkCompleteLocked()
}

// MarkComplete completes the active lesson and moves on to the next
// accessible one unless the course is now complete. Completing an already
// completed lesson is a no-op.
func (t *ProgressTracker) MarkComplete(ctx context.Context, lessonID int64) error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return ErrSessionClosed
	}

	idx := lessonIndex(t.lessons, lessonID)
	if idx < 0 {
		t.mu.Unlock()
		return ErrLessonNotFound
	}
	lesson := t.lessons[idx]
	if !lesson.IsAccessible {
		t.mu.Unlock()
		return ErrLessonNotAccessible
	}
	if t.isCompletedLocked(lessonID) {
		t.mu.Unlock()
		return nil
	}
	if t.active == nil || t.active.ID != lessonID {
		t.mu.Unlock()
		return ErrLessonNotActive
	}
	if !t.gate.Satisfied() {
		t.mu.Unlock()
		return ErrWatchThresholdNotMet
	}

	t.completed[lessonID] = struct{}{}
	if !t.isCompleteLocked() {
		if next := NextAccessibleLesson(t.lessons, idx); next != nil {
			t.setActiveLocked(next)
		}
	}
	t.mu.Unlock()

	t.persist(ctx, lessonID)
	return nil
}

// AdvanceNext moves to the next accessible lesson. The lesson being left is
// completed first if its watch threshold was already met. With no accessible
// lesson ahead the active lesson stays as it is.
func (t *ProgressTracker) AdvanceNext(ctx context.Context) (*model.Lesson, error) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if t.active == nil {
		t.mu.Unlock()
		return nil, nil
	}

	var completedNow int64
	if t.canMarkCompleteLocked() {
		completedNow = t.active.ID
		t.completed[completedNow] = struct{}{}
	}

	idx := lessonIndex(t.lessons, t.active.ID)
	if next := NextAccessibleLesson(t.lessons, idx); next != nil {
		t.setActiveLocked(next)
	}
	active := t.active
	t.mu.Unlock()

	if completedNow != 0 {
		t.persist(ctx, completedNow)
	}
	return active, nil
}

// Progress is the completed fraction of all lessons, 0 for an empty course.
func (t *ProgressTracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressLocked()
}

func (t *ProgressTracker) ProgressPercent() int {
	return int(math.Round(t.Progress() * 100))
}

func (t *ProgressTracker) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCompleteLocked()
}

func (t *ProgressTracker) IsCompleted(lessonID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCompletedLocked(lessonID)
}

// Completed lists completed lesson ids in course order.
func (t *ProgressTracker) Completed() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedLocked()
}

func (t *ProgressTracker) Snapshot() WatchState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := WatchState{
		CourseID:        t.courseID,
		Lessons:         make([]LessonState, 0, len(t.lessons)),
		ActiveLesson:    t.active,
		Completed:       t.completedLocked(),
		Total:           len(t.lessons),
		ProgressPercent: int(math.Round(t.progressLocked() * 100)),
		Complete:        t.isCompleteLocked(),
		WatchedPercent:  t.gate.Percent(),
		CanMarkComplete: t.canMarkCompleteLocked(),
		Locked:          IsLocked(t.viewer, t.active),
		Notice:          t.notice,
		Empty:           len(t.lessons) == 0,
	}
	for _, l := range t.lessons {
		state.Lessons = append(state.Lessons, LessonState{
			Lesson:    *l,
			Completed: t.isCompletedLocked(l.ID),
			Active:    t.active != nil && t.active.ID == l.ID,
			Locked:    !l.IsAccessible,
		})
	}
	return state
}

// Close cancels the pending watch timer. The tracker rejects further
// navigation afterwards.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.gate.Stop()
}

func (t *ProgressTracker) setActiveLocked(lesson *model.Lesson) {
	t.active = lesson
	t.notice = ""
	t.gate.Arm(lesson.ID, t.isCompletedLocked(lesson.ID))
}

func (t *ProgressTracker) canMarkCompleteLocked() bool {
	return !t.closed &&
		t.active != nil &&
		t.active.IsAccessible &&
		!t.isCompletedLocked(t.active.ID) &&
		t.gate.Satisfied()
}

func (t *ProgressTracker) isCompletedLocked(lessonID int64) bool {
	_, ok := t.completed[lessonID]
	return ok
}

func (t *ProgressTracker) isCompleteLocked() bool {
	return len(t.lessons) > 0 && len(t.completed) == len(t.lessons)
}

func (t *ProgressTracker) progressLocked() float64 {
	if len(t.lessons) == 0 {
		return 0
	}
	return float64(len(t.completed)) / float64(len(t.lessons))
}

func (t *ProgressTracker) completedLocked() []int64 {
	ids := make([]int64, 0, len(t.completed))
	for _, l := range t.lessons {
		if t.isCompletedLocked(l.ID) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (t *ProgressTracker) persist(ctx context.Context, lessonID int64) {
	if t.store == nil || !t.viewer.Authenticated {
		return
	}
	if err := t.store.MarkCompleted(ctx, t.viewer.UserID, t.courseID, lessonID); err != nil {
		t.log.Warn().Err(err).
			Int64("course_id", t.courseID).
			Int64("lesson_id", lessonID).
			Msg("store lesson completion")
	}
}
