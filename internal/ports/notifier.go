package ports

import "charge-station-locator/internal/domain"

// Port for surfacing user-visible notices to the presentation layer.
type Notifier interface {
	Notify(n domain.Notice)
}

// NotifierFunc adapts a function to the Notifier port.
type NotifierFunc func(domain.Notice)

func (f NotifierFunc) Notify(n domain.Notice) { f(n) }
