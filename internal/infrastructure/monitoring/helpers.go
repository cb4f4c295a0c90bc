package monitoring

// Outcome labels shared by lifecycle metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps a success flag to its label.
func Outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
