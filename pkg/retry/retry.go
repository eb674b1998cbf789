package retry

// Action is a unit of work that may be retried
type Action func() error

// Retry runs action until it succeeds or a strategy vetoes another attempt.
// It returns the number of attempts made along with the last error.
//
// Strategies are evaluated in order after every failed attempt and evaluation
// stops at the first veto. Strategies that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, s := range strategies {
			if !s(attempts, err) {
				return attempts, err
			}
		}
	}
}
