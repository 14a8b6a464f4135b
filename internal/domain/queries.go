package domain

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// RoutineWorkouts returns cached workouts performed from a routine, newest first, at most limit entries.
func (s *Service) RoutineWorkouts(ctx context.Context, routineID string, limit int) []Record {
	var matches []Record
	for _, r := range s.load(ctx, CollectionWorkouts) {
		var head struct {
			RoutineID *string `json:"routine_id"`
		}
		if err := r.Decode(&head); err != nil {
			continue
		}
		if head.RoutineID != nil && *head.RoutineID == routineID {
			matches = append(matches, r)
		}
	}

	SortNewestFirst(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []Record{}
	}
	return matches
}

// ExercisesByTitle collects every cached exercise whose title matches case-insensitively,
// newest workout first.
func (s *Service) ExercisesByTitle(ctx context.Context, title string) []ExerciseOccurrence {
	out := []ExerciseOccurrence{}
	for _, r := range s.load(ctx, CollectionWorkouts) {
		var w struct {
			Exercises []json.RawMessage `json:"exercises"`
		}
		if err := r.Decode(&w); err != nil {
			s.logger.Debug("skipping undecodable workout", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		for _, raw := range w.Exercises {
			var ex Exercise
			if err := json.Unmarshal(raw, &ex); err != nil {
				continue
			}
			if strings.EqualFold(ex.Title, title) {
				out = append(out, ExerciseOccurrence{Exercise: ex, WorkoutID: r.ID, WorkoutDate: r.CreatedAt, raw: raw})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b ExerciseOccurrence) int {
		return strings.Compare(b.WorkoutDate, a.WorkoutDate)
	})
	return out
}

// RoutineExerciseTitles lists the exercise titles of a routine, reading the cache first.
func (s *Service) RoutineExerciseTitles(ctx context.Context, routineID string) ([]string, error) {
	record, err := s.ReadOne(ctx, CollectionRoutines, routineID)
	if err != nil {
		return nil, err
	}
	var routine Routine
	if err := record.Decode(&routine); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(routine.Exercises))
	for _, ex := range routine.Exercises {
		if ex.Title != "" {
			titles = append(titles, ex.Title)
		}
	}
	return titles, nil
}
