package normalize

import (
	"fmt"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/curriculum"
)

// Course decodes a structure-extraction response.
func (n *Normalizer) Course(raw string) (curriculum.CourseStructure, error) {
	v, err := n.decode(ai.IntentStructure, raw)
	if err != nil {
		return curriculum.CourseStructure{}, err
	}
	return courseFrom(v), nil
}

func courseFrom(v any) curriculum.CourseStructure {
	m := object(v)
	course := curriculum.CourseStructure{
		Title:       str(m["title"], curriculum.DefaultCourseTitle),
		Description: str(m["description"], ""),
		Modules:     []curriculum.Module{},
	}

	seen := make(map[string]bool)
	for i, raw := range list(m["modules"]) {
		mm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		base := id(mm["id"])
		if base == "" {
			base = fmt.Sprintf("module-%d", i+1)
		}
		course.Modules = append(course.Modules, curriculum.Module{
			ID:                 uniqueID(base, seen),
			Title:              str(mm["title"], curriculum.DefaultModuleTitle),
			Topics:             stringList(mm["topics"]),
			LearningObjectives: stringList(first(mm, "learningObjectives", "learning_objectives", "objectives")),
		})
	}
	return course
}
