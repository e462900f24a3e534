package learning

import (
	"fmt"
	"time"
)

// TargetKind names the entity a progress record refers to.
type TargetKind string

const (
	TargetSubject  TargetKind = "subject"
	TargetModule   TargetKind = "module"
	TargetLesson   TargetKind = "lesson"
	TargetActivity TargetKind = "activity"
)

// Target is the single entity a progress record refers to.
type Target struct {
	Kind TargetKind
	ID   int64
}

// ParseTargetKind validates an entity_type value.
func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(s); k {
	case TargetSubject, TargetModule, TargetLesson, TargetActivity:
		return k, nil
	}
	return "", fmt.Errorf("%w: invalid entity_type %q", ErrInvalidArgument, s)
}

// ProgressRecord is one immutable entry in a user's progress log. Exactly one
// of the reference fields is set.
type ProgressRecord struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	SubjectID  *int64    `json:"subject_id"`
	ModuleID   *int64    `json:"module_id"`
	LessonID   *int64    `json:"lesson_id"`
	ActivityID *int64    `json:"activity_id"`
	Completed  bool      `json:"completed"`
	Score      *float64  `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewProgress builds a record pointing at target.
func NewProgress(userID string, target Target, completed bool, score *float64) ProgressRecord {
	rec := ProgressRecord{UserID: userID, Completed: completed, Score: score}
	id := target.ID
	switch target.Kind {
	case TargetSubject:
		rec.SubjectID = &id
	case TargetModule:
		rec.ModuleID = &id
	case TargetLesson:
		rec.LessonID = &id
	case TargetActivity:
		rec.ActivityID = &id
	}
	return rec
}

// ActivityAttempt records a graded quiz attempt.
func ActivityAttempt(userID string, activityID int64, score float64) ProgressRecord {
	return NewProgress(userID, Target{Kind: TargetActivity, ID: activityID}, true, &score)
}

// LessonCompleted records a completed lesson with its score.
func LessonCompleted(userID string, lessonID int64, score float64) ProgressRecord {
	return NewProgress(userID, Target{Kind: TargetLesson, ID: lessonID}, true, &score)
}

// LessonUnlocked is the sentinel marking a lesson as reachable.
func LessonUnlocked(userID string, lessonID int64) ProgressRecord {
	return NewProgress(userID, Target{Kind: TargetLesson, ID: lessonID}, false, nil)
}

// Target returns the entity the record refers to. ok is false for a record
// with no reference set.
func (r ProgressRecord) Target() (Target, bool) {
	switch {
	case r.ActivityID != nil:
		return Target{Kind: TargetActivity, ID: *r.ActivityID}, true
	case r.LessonID != nil:
		return Target{Kind: TargetLesson, ID: *r.LessonID}, true
	case r.ModuleID != nil:
		return Target{Kind: TargetModule, ID: *r.ModuleID}, true
	case r.SubjectID != nil:
		return Target{Kind: TargetSubject, ID: *r.SubjectID}, true
	}
	return Target{}, false
}

// IsUnlockSentinel reports whether r only marks a lesson as reachable.
func (r ProgressRecord) IsUnlockSentinel() bool {
	return r.LessonID != nil && !r.Completed && r.Score == nil
}

// sameKey reports whether r and o refer to the same user and entity.
func (r ProgressRecord) sameKey(o ProgressRecord) bool {
	return r.UserID == o.UserID &&
		eqID(r.SubjectID, o.SubjectID) &&
		eqID(r.ModuleID, o.ModuleID) &&
		eqID(r.LessonID, o.LessonID) &&
		eqID(r.ActivityID, o.ActivityID)
}

func eqID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ProgressFilter filters a user's progress listing.
type ProgressFilter struct {
	ListParams
	UserID     string
	SubjectID  *int64
	ModuleID   *int64
	LessonID   *int64
	ActivityID *int64
}

func (f ProgressFilter) match(r ProgressRecord) bool {
	if r.UserID != f.UserID {
		return false
	}
	if f.SubjectID != nil && !eqID(r.SubjectID, f.SubjectID) {
		return false
	}
	if f.ModuleID != nil && !eqID(r.ModuleID, f.ModuleID) {
		return false
	}
	if f.LessonID != nil && !eqID(r.LessonID, f.LessonID) {
		return false
	}
	if f.ActivityID != nil && !eqID(r.ActivityID, f.ActivityID) {
		return false
	}
	return true
}

// Progress statuses accepted by UpsertProgress.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in_progress"
)

// ProgressUpsert is the payload of the update-latest-by-key progress path.
type ProgressUpsert struct {
	UserID     string
	EntityType string
	EntityID   int64
	Status     string
	Score      *float64
}

// Record converts the upsert into the record it would write.
func (u ProgressUpsert) Record() (ProgressRecord, error) {
	if u.UserID == "" {
		return ProgressRecord{}, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	kind, err := ParseTargetKind(u.EntityType)
	if err != nil {
		return ProgressRecord{}, err
	}
	var completed bool
	switch u.Status {
	case StatusCompleted:
		completed = true
	case StatusInProgress:
	default:
		return ProgressRecord{}, fmt.Errorf("%w: invalid status %q", ErrInvalidArgument, u.Status)
	}
	if u.Score != nil && (*u.Score < 0 || *u.Score > 100) {
		return ProgressRecord{}, fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidArgument)
	}
	return NewProgress(u.UserID, Target{Kind: kind, ID: u.EntityID}, completed, u.Score), nil
}
