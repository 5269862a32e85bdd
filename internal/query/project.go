package query

import "jobmate/jobs-service/internal/model"

// Project returns j reduced to the given fields, keyed by their JSON names.
// An empty field list means no projection and returns nil.
func Project(j *model.Job, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, name := range fields {
		if _, ok := LookupField(name); !ok {
			continue
		}
		out[name] = FieldValue(j, name)
	}
	return out
}
