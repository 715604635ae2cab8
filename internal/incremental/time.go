package incremental

import "time"

// now is a seam over time.Now so tests can produce deterministic
// LastProcessedAt values.
var now = func() time.Time { return time.Now() }
