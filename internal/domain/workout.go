package domain

import "encoding/json"

// Workout is the typed view of a cached workout record.
type Workout struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RoutineID   *string    `json:"routine_id,omitempty"`
	StartTime   string     `json:"start_time,omitempty"`
	EndTime     string     `json:"end_time,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

// Exercise is one ordered exercise within a workout or routine.
type Exercise struct {
	Index              int    `json:"index"`
	Title              string `json:"title"`
	Notes              string `json:"notes,omitempty"`
	ExerciseTemplateID string `json:"exercise_template_id,omitempty"`
	SupersetID         *int   `json:"superset_id,omitempty"`
	Sets               []Set  `json:"sets"`
}

// Set is one ordered set of an exercise. Measurements are optional and depend on the exercise type.
type Set struct {
	Index           int      `json:"index"`
	Type            string   `json:"type"`
	WeightKg        *float64 `json:"weight_kg,omitempty"`
	Reps            *int     `json:"reps,omitempty"`
	DistanceMeters  *float64 `json:"distance_meters,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	RPE             *float64 `json:"rpe,omitempty"`
}

// Routine is the typed view of a cached routine record.
type Routine struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	FolderID  *int64     `json:"folder_id,omitempty"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at,omitempty"`
	Exercises []Exercise `json:"exercises"`
}

// ExerciseOccurrence is an exercise found in a cached workout, annotated with its workout.
// It serialises as the exercise object exactly as cached plus workout_id and workout_date.
type ExerciseOccurrence struct {
	Exercise
	WorkoutID   string `json:"workout_id"`
	WorkoutDate string `json:"workout_date"`

	raw json.RawMessage
}

type exerciseOccurrenceJSON ExerciseOccurrence

// MarshalJSON emits the cached exercise object with the two annotation keys set.
func (o ExerciseOccurrence) MarshalJSON() ([]byte, error) {
	var fields map[string]json.RawMessage
	if len(o.raw) == 0 || json.Unmarshal(o.raw, &fields) != nil {
		return json.Marshal(exerciseOccurrenceJSON(o))
	}
	var err error
	if fields["workout_id"], err = json.Marshal(o.WorkoutID); err != nil {
		return nil, err
	}
	if fields["workout_date"], err = json.Marshal(o.WorkoutDate); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
