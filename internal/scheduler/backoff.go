package scheduler

import "time"

// MaxRetries is the retry ceiling: a job gets at most MaxRetries
// re-attempts after its first failure before transitioning to FAILURE.
const MaxRetries = 5

// RetryDelay returns the wait before the re-attempt following the given
// retry count: 60 * 2^retryCount seconds, i.e. 60, 120, 240, 480, 960 for
// counts 0..4. The curve is a compatibility contract with recorded job
// histories, not a tunable.
func RetryDelay(retryCount int) time.Duration {
	return time.Duration(60<<retryCount) * time.Second
}
