package domain

// Notifier surfaces user-visible notifications (toasts). All pipeline
// failures are reduced to a single notification at the boundary where
// they occur; no failure propagates as a crash.
type Notifier interface {
	Error(message string)
	Warning(message string)
}

// NotifierFuncs adapts plain funcs to Notifier. Nil fields are no-ops.
type NotifierFuncs struct {
	ErrorFunc   func(message string)
	WarningFunc func(message string)
}

func (n NotifierFuncs) Error(message string) {
	if n.ErrorFunc != nil {
		n.ErrorFunc(message)
	}
}

func (n NotifierFuncs) Warning(message string) {
	if n.WarningFunc != nil {
		n.WarningFunc(message)
	}
}
