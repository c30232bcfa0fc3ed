package candidate

import "time"

// Compare orders two candidates by preference: quality first, then custom
// format score, then the newer release, then the larger one. It returns a
// positive number when a is preferred over b.
func Compare(a, b *Candidate) int {
	if c := a.Quality.Compare(b.Quality); c != 0 {
		return c
	}
	if sa, sb := a.CustomFormatScore(), b.CustomFormatScore(); sa != sb {
		return sign(sa - sb)
	}
	if !a.PublishDate.Equal(b.PublishDate) {
		if newer(a.PublishDate, b.PublishDate) {
			return 1
		}
		return -1
	}
	if a.Size != b.Size {
		if a.Size > b.Size {
			return 1
		}
		return -1
	}
	return 0
}

func newer(a, b time.Time) bool {
	if b.IsZero() {
		return true
	}
	return !a.IsZero() && a.After(b)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
