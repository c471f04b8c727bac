package walletcore

import "sync"

// BaseObserver is a no-op Observer for embedding; override what you need.
type BaseObserver struct{}

func (BaseObserver) InitCompleted(error)                       {}
func (BaseObserver) SaveCompleted(error)                       {}
func (BaseObserver) SendCompleted(TransactionID, error)        {}
func (BaseObserver) ExternalTransactionCreated(TransactionID)  {}
func (BaseObserver) SynchronizationProgress(cur, total uint64) {}
func (BaseObserver) SynchronizationCompleted(error)            {}

var _ Observer = BaseObserver{}

// observerSet multicasts engine callbacks to registered observers.
// Registration order is not significant; delivery is serialized.
type observerSet struct {
	lk  sync.Mutex
	obs []Observer
}

func (s *observerSet) add(o Observer) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.obs = append(s.obs, o)
}

func (s *observerSet) remove(o Observer) {
	s.lk.Lock()
	defer s.lk.Unlock()
	for i, cur := range s.obs {
		if cur == o {
			s.obs = append(s.obs[:i], s.obs[i+1:]...)
			return
		}
	}
}

// each calls fn for every observer registered at call time.
func (s *observerSet) each(fn func(Observer)) {
	s.lk.Lock()
	snapshot := make([]Observer, len(s.obs))
	copy(snapshot, s.obs)
	s.lk.Unlock()

	for _, o := range snapshot {
		fn(o)
	}
}
