package service

import "learner-portal/internal/model"

// SelectActiveLesson picks the lesson to show when a watch session opens:
// the requested lesson if it is accessible, else the first accessible lesson,
// else the first lesson. An empty list selects nothing.
func SelectActiveLesson(lessons []*model.Lesson, requestedID int64) (*model.Lesson, bool) {
	if len(lessons) == 0 {
		return nil, false
	}

	if requestedID != 0 {
		for _, l := range lessons {
			if l.ID == requestedID && l.IsAccessible {
				return l, true
			}
		}
	}

	for _, l := range lessons {
		if l.IsAccessible {
			return l, true
		}
	}

	return lessons[0], true
}

// SelectLesson handles an explicit playlist pick. It never touches the network.
func SelectLesson(lessons []*model.Lesson, lessonID int64) (*model.Lesson, error) {
	idx := lessonIndex(lessons, lessonID)
	if idx < 0 {
		return nil, ErrLessonNotFound
	}
	if !lessons[idx].IsAccessible {
		return nil, ErrLessonNotAccessible
	}
	return lessons[idx], nil
}

// NextAccessibleLesson returns the first accessible lesson after index from,
// or nil when there is none.
func NextAccessibleLesson(lessons []*model.Lesson, from int) *model.Lesson {
	for i := from + 1; i < len(lessons); i++ {
		if lessons[i].IsAccessible {
			return lessons[i]
		}
	}
	return nil
}

// IsLocked reports whether the active lesson has to be shown with the locked
// notice. Admins are never shown the notice.
func IsLocked(viewer model.Viewer, lesson *model.Lesson) bool {
	return lesson != nil && !lesson.IsAccessible && !viewer.IsAdmin()
}

func AccessibleLessons(lessons []*model.Lesson) []*model.Lesson {
	out := make([]*model.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.IsAccessible {
			out = append(out, l)
		}
	}
	return out
}

func lessonIndex(lessons []*model.Lesson, lessonID int64) int {
	for i, l := range lessons {
		if l.ID == lessonID {
			return i
		}
	}
	return -1
}
