package decisioning

import "sync"

// TitleLock serialises grabs per title. RSS sync, the pending release task
// and user searches all go through the same lock, so two of them never grab
// for one title at once.
type TitleLock struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewTitleLock() *TitleLock {
	return &TitleLock{held: make(map[int64]struct{})}
}

// TryLock takes the title's lock without waiting. On success the returned
// func releases it; ok is false when another caller holds it.
func (l *TitleLock) TryLock(titleID int64) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[titleID]; busy {
		return nil, false
	}
	l.held[titleID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, titleID)
			l.mu.Unlock()
		})
	}, true
}
