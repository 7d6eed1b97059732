package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// NotificationType names an observable ledger event.
type NotificationType string

const (
	NotificationVoteCast          NotificationType = "vote-cast"
	NotificationAirlineRegistered NotificationType = "airline-registered"
	NotificationAirlineFunded     NotificationType = "airline-funded"
	NotificationFlightRegistered  NotificationType = "flight-registered"
	NotificationOracleRequest     NotificationType = "oracle-request"
	NotificationOracleReport      NotificationType = "oracle-report"
	NotificationStatusResolved    NotificationType = "flight-status-resolved"
	NotificationInsureeCredited   NotificationType = "insuree-credited"
	NotificationPayout            NotificationType = "payout"
)

type (
	// Notification is an append-only record of something a ledger call did.
	// Nothing in the ledger depends on a notification being observed.
	Notification struct {
		ID        uuid.UUID        `json:"id"`
		Seq       uint64           `json:"seq"`
		Type      NotificationType `json:"type"`
		CreatedAt time.Time        `json:"createdAt"`
		Data      any              `json:"data"`
	}

	Notifier interface {
		// Notify must not block; it is called synchronously after each
		// successful ledger call.
		Notify(n Notification)
	}

	NotifierFunc func(n Notification)

	VoteCast struct {
		Candidate common.Address `json:"candidate"`
		Voter     common.Address `json:"voter"`
		Votes     int            `json:"votes"`
		Required  int            `json:"required"`
	}

	AirlineAdmitted struct {
		Airline common.Address `json:"airline"`
		Name    string         `json:"name"`
		Total   int            `json:"numAirlines"`
	}

	AirlineFunded struct {
		Airline common.Address `json:"airline"`
		Amount  string         `json:"amount"`
		Total   string         `json:"fundedAmount"`
	}

	FlightRegistered struct {
		Key       common.Hash    `json:"key"`
		Airline   common.Address `json:"airline"`
		Name      string         `json:"name"`
		Timestamp uint64         `json:"timestamp"`
	}

	OracleRequested struct {
		Key       common.Hash    `json:"key"`
		Index     uint8          `json:"index"`
		FlightKey common.Hash    `json:"flightKey"`
		Airline   common.Address `json:"airline"`
		Flight    string         `json:"flight"`
		Timestamp uint64         `json:"timestamp"`
	}

	OracleReported struct {
		Key    common.Hash    `json:"key"`
		Oracle common.Address `json:"oracle"`
		Status StatusCode     `json:"status"`
	}

	StatusResolved struct {
		RequestKey common.Hash   `json:"requestKey"`
		FlightKey  common.Hash   `json:"flightKey"`
		Flight     string        `json:"flight"`
		Timestamp  uint64        `json:"timestamp"`
		Status     StatusCode    `json:"status"`
		// open requests for the same flight that will never resolve
		Superseded []common.Hash `json:"superseded,omitempty"`
	}

	InsureeCredited struct {
		FlightKey common.Hash    `json:"flightKey"`
		Passenger common.Address `json:"passenger"`
		Amount    string         `json:"amount"`
	}

	PaidOut struct {
		Passenger common.Address `json:"passenger"`
		Amount    string         `json:"amount"`
	}
)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// MultiNotifier delivers every notification to each of ns in order.
func MultiNotifier(ns ...Notifier) Notifier {
	return NotifierFunc(func(n Notification) {
		for _, x := range ns {
			if x != nil {
				x.Notify(n)
			}
		}
	})
}

// emit records a notification and queues it for delivery once the lock is
// released. Must be called with the lock held, after the call has committed.
func (l *Ledger) emit(typ NotificationType, data any) {
	l.seq++
	n := Notification{
		ID:        uuid.New(),
		Seq:       l.seq,
		Type:      typ,
		CreatedAt: l.timestamp(),
		Data:      data,
	}
	l.notifications = append(l.notifications, n)
	if over := len(l.notifications) - l.notificationLimit; over > 0 {
		l.notifications = append(l.notifications[:0:0], l.notifications[over:]...)
	}
	l.pending = append(l.pending, n)
}

// Notifications returns the retained notifications with a sequence number
// greater than since, oldest first.
func (l *Ledger) Notifications(since uint64) []Notification {
	l.lock()
	defer l.unlock()

	var out []Notification
	for _, n := range l.notifications {
		if n.Seq > since {
			out = append(out, n)
		}
	}
	return out
}
