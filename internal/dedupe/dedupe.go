// Package dedupe provides shared singleflight groups used to deduplicate
// concurrent work inside one process: illustration rendering for a round
// and resolution of the same round by several callers.
package dedupe

import "golang.org/x/sync/singleflight"

// IllustrationGroup deduplicates rendering keyed by the illustration
// object key.
var IllustrationGroup singleflight.Group

// RoundGroup deduplicates resolveRound calls keyed by round id.
var RoundGroup singleflight.Group
