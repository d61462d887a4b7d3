package models

// Field is the local name of a syncable work item field.
type Field string

const (
	FieldTitle              Field = "title"
	FieldDescription        Field = "description"
	FieldState              Field = "state"
	FieldPriority           Field = "priority"
	FieldAssignedTo         Field = "assignedTo"
	FieldAreaPath           Field = "areaPath"
	FieldIterationPath      Field = "iterationPath"
	FieldAcceptanceCriteria Field = "acceptanceCriteria"
	FieldEffort             Field = "effort"
	FieldStoryPoints        Field = "storyPoints"
	FieldBusinessValue      Field = "businessValue"
	FieldValueArea          Field = "valueArea"
	FieldTargetDate         Field = "targetDate"
	FieldStartDate          Field = "startDate"
	FieldFinishDate         Field = "finishDate"
	FieldRemainingWork      Field = "remainingWork"
	FieldOriginalEstimate   Field = "originalEstimate"
	FieldCompletedWork      Field = "completedWork"
	FieldActivity           Field = "activity"
	FieldTags               Field = "tags"
)

// ComparisonFields is the ordered set of fields the diff engine compares.
var ComparisonFields = []Field{
	FieldTitle,
	FieldDescription,
	FieldState,
	FieldPriority,
	FieldAssignedTo,
	FieldAreaPath,
	FieldIterationPath,
	FieldAcceptanceCriteria,
	FieldEffort,
	FieldStoryPoints,
	FieldBusinessValue,
	FieldValueArea,
	FieldTargetDate,
	FieldRemainingWork,
	FieldOriginalEstimate,
	FieldCompletedWork,
	FieldActivity,
	FieldTags,
}

// Value returns the item's value for f in a normalized form: string,
// float64 or []string. Unset fields return nil.
func (w *WorkItem) Value(f Field) any {
	switch f {
	case FieldTitle:
		return str(w.Title)
	case FieldDescription:
		return str(w.Description)
	case FieldState:
		return str(w.State)
	case FieldPriority:
		if w.Priority == 0 {
			return nil
		}
		return float64(w.Priority)
	case FieldAssignedTo:
		return str(w.AssignedTo)
	case FieldAreaPath:
		return str(w.AreaPath)
	case FieldIterationPath:
		return str(w.IterationPath)
	case FieldAcceptanceCriteria:
		return str(w.AcceptanceCriteria)
	case FieldEffort:
		return num(w.Effort)
	case FieldStoryPoints:
		return num(w.StoryPoints)
	case FieldBusinessValue:
		if w.BusinessValue == nil {
			return nil
		}
		return float64(*w.BusinessValue)
	case FieldValueArea:
		return str(w.ValueArea)
	case FieldTargetDate:
		return str(w.TargetDate)
	case FieldStartDate:
		return str(w.StartDate)
	case FieldFinishDate:
		return str(w.FinishDate)
	case FieldRemainingWork:
		return num(w.RemainingWork)
	case FieldOriginalEstimate:
		return num(w.OriginalEstimate)
	case FieldCompletedWork:
		return num(w.CompletedWork)
	case FieldActivity:
		return str(w.Activity)
	case FieldTags:
		if len(w.Tags) == 0 {
			return nil
		}
		return append([]string(nil), w.Tags...)
	}
	return nil
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func num(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// SetValue assigns a normalized value (as returned by Value) to field f.
// A nil value clears the field. Values of the wrong shape are ignored.
func (w *WorkItem) SetValue(f Field, v any) {
	s, _ := v.(string)
	n, isNum := v.(float64)
	var np *float64
	if isNum {
		np = &n
	}

	switch f {
	case FieldTitle:
		w.Title = s
	case FieldDescription:
		w.Description = s
	case FieldState:
		w.State = s
	case FieldPriority:
		w.Priority = int(n)
	case FieldAssignedTo:
		w.AssignedTo = s
	case FieldAreaPath:
		w.AreaPath = s
	case FieldIterationPath:
		w.IterationPath = s
	case FieldAcceptanceCriteria:
		w.AcceptanceCriteria = s
	case FieldEffort:
		w.Effort = np
	case FieldStoryPoints:
		w.StoryPoints = np
	case FieldBusinessValue:
		if isNum {
			bv := int(n)
			w.BusinessValue = &bv
		} else {
			w.BusinessValue = nil
		}
	case FieldValueArea:
		w.ValueArea = s
	case FieldTargetDate:
		w.TargetDate = s
	case FieldStartDate:
		w.StartDate = s
	case FieldFinishDate:
		w.FinishDate = s
	case FieldRemainingWork:
		w.RemainingWork = np
	case FieldOriginalEstimate:
		w.OriginalEstimate = np
	case FieldCompletedWork:
		w.CompletedWork = np
	case FieldActivity:
		w.Activity = s
	case FieldTags:
		tags, _ := v.([]string)
		w.Tags = append([]string(nil), tags...)
	}
}
