package executor

import "time"

// nowFunc is a seam for deterministic duration assertions in tests.
var nowFunc = time.Now
