package metrics

/*
Labels and so on for metrics used in sacar.
*/

const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelSuccess = "success"

	// Labels for rollout metrics
	LabelConclusion = "conclusion"
	LabelStage      = "stage"
	LabelStatus     = "status"
	LabelKind       = "kind"
)
