package mint

import "time"

// skewTolerance bounds how far into the future a slot's updated_at may sit
// before it is treated as corrupt.  Application and database hosts are not
// guaranteed the same clock; a small forward skew is clamped to "just
// updated" instead of failing legitimate completions.  This replaces the
// old fixed nine-hour offset subtraction, which masked a host timezone
// misconfiguration rather than handling skew.
const skewTolerance = time.Hour

// leaseExpired reports whether a lock last touched at updatedAt has aged
// past ttl as of now.  Timestamps up to skewTolerance in the future count
// as fresh; anything further ahead is treated as expired so that a bogus
// timestamp can never produce an immortal lock.
func leaseExpired(updatedAt, now time.Time, ttl time.Duration) bool {
	age := now.Sub(updatedAt)
	if age < 0 {
		return age < -skewTolerance
	}
	return age > ttl
}
