/*
Package blockmatch estimates motion between two gray frames with block matching.

The source frame is cut into non-overlapping square blocks. For every block the
matcher scans a window of candidate positions in the target frame and keeps the
one with the lowest distortion, producing a Field of displacement vectors, one
per block.

Basic usage:

	field, err := blockmatch.Match(current, previous, 8, 16)
	if err != nil {
	    log.Fatal(err)
	}

	// Coarse to fine search over a 3 level pyramid
	fields, err := blockmatch.MatchPyramidal(current, previous, 8, 16, 3)
	if err != nil {
	    log.Fatal(err)
	}

	predicted, err := blockmatch.Compensate(previous, fields[0], 8)
*/
package blockmatch
