package session

import (
	"time"

	"github.com/lumen-io/client/internal/models"
)

// Observer receives coordinator events. Calls are made synchronously from
// the coordinator and must not block.
type Observer interface {
	RefreshStarted()
	RefreshFinished(err error, elapsed time.Duration)
	WaiterQueued(req *models.RequestDescriptor)
	WaiterReleased(req *models.RequestDescriptor, err error)
	StaleRetry(req *models.RequestDescriptor)
	SessionLost(reason error)
}

type nopObserver struct{}

func (nopObserver) RefreshStarted()                                 {}
func (nopObserver) RefreshFinished(error, time.Duration)            {}
func (nopObserver) WaiterQueued(*models.RequestDescriptor)          {}
func (nopObserver) WaiterReleased(*models.RequestDescriptor, error) {}
func (nopObserver) StaleRetry(*models.RequestDescriptor)            {}
func (nopObserver) SessionLost(error)                               {}

// NopObserver discards every event.
func NopObserver() Observer {
	return nopObserver{}
}
