package protocol

// Route classifies a decoded Envelope into the four buckets spec.md §4.2
// names. Callers switch on Class and use Route as router output — the
// router itself holds no state and performs no I/O.
type Class int

const (
	ClassDataUpdate Class = iota
	ClassCriticalError
	ClassStudyError
	ClassOther
)

// Route is the router's verdict on one decoded Envelope.
type Route struct {
	Class Class
	// Data is p[1] (the "data" mapping) for timescale_update/du messages.
	Data map[string]interface{}
	// StudyID and Reason are p[1] and p[3] for study_error messages.
	StudyID string
	Reason  string
}

// Classify inspects env.M and extracts what the session layer needs from
// env.P, without mutating any session state.
func Classify(env Envelope) Route {
	switch env.M {
	case "timescale_update", "du":
		if len(env.P) < 2 {
			return Route{Class: ClassOther}
		}
		data, _ := env.P[1].(map[string]interface{})
		return Route{Class: ClassDataUpdate, Data: data}
	case "critical_error":
		return Route{Class: ClassCriticalError}
	case "study_error":
		r := Route{Class: ClassStudyError}
		if len(env.P) > 1 {
			r.StudyID, _ = env.P[1].(string)
		}
		if len(env.P) > 3 {
			r.Reason, _ = env.P[3].(string)
		}
		return r
	default:
		return Route{Class: ClassOther}
	}
}
