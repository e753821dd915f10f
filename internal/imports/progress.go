package imports

type ImportStatus int

const (
	StatusSuccess ImportStatus = iota
	StatusFail
)

func (s ImportStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "fail"
}

// ProgressListener observes one import. OnLogImported receives the running
// log index and the declared total, -1 when the document did not declare one.
type ProgressListener interface {
	OnImportStarted()
	OnLogImported(index, total int64)
	OnImportFinished(status ImportStatus)
}

type nopProgress struct{}

func (nopProgress) OnImportStarted()                {}
func (nopProgress) OnLogImported(_, _ int64)        {}
func (nopProgress) OnImportFinished(_ ImportStatus) {}

// ProgressFuncs adapts optional callbacks to a ProgressListener.
type ProgressFuncs struct {
	Started  func()
	Imported func(index, total int64)
	Finished func(status ImportStatus)
}

func (p ProgressFuncs) OnImportStarted() {
	if p.Started != nil {
		p.Started()
	}
}

func (p ProgressFuncs) OnLogImported(index, total int64) {
	if p.Imported != nil {
		p.Imported(index, total)
	}
}

func (p ProgressFuncs) OnImportFinished(status ImportStatus) {
	if p.Finished != nil {
		p.Finished(status)
	}
}

// MultiProgress forwards every notification to each listener in order.
type MultiProgress []ProgressListener

func (m MultiProgress) OnImportStarted() {
	for _, l := range m {
		if l != nil {
			l.OnImportStarted()
		}
	}
}

func (m MultiProgress) OnLogImported(index, total int64) {
	for _, l := range m {
		if l != nil {
			l.OnLogImported(index, total)
		}
	}
}

func (m MultiProgress) OnImportFinished(status ImportStatus) {
	for _, l := range m {
		if l != nil {
			l.OnImportFinished(status)
		}
	}
}
