package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// IsOperational reports whether mutating operations are currently accepted.
func (l *Ledger) IsOperational() bool {
	l.lock()
	defer l.unlock()
	return l.operational
}

// SetOperatingStatus toggles the operational gate. Only the owner may call it,
// and it is accepted regardless of the current gate state.
func (l *Ledger) SetOperatingStatus(caller common.Address, operational bool) error {
	l.lock()
	defer l.unlock()

	if caller != l.owner {
		return fmt.Errorf("set operating status by %s: %w", caller, ErrUnauthorized)
	}
	if l.operational != operational {
		l.log.Info().Bool("operational", operational).Msg("operating status changed")
	}
	l.operational = operational
	return nil
}

// AuthorizeCaller adds addr to the set of callers allowed to credit insurees
// directly.
func (l *Ledger) AuthorizeCaller(caller, addr common.Address) error {
	l.lock()
	defer l.unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("authorize caller: %w", ErrZeroAddress)
	}
	l.authorized[addr] = struct{}{}
	return nil
}

// DeauthorizeCaller removes addr from the authorized caller set.
func (l *Ledger) DeauthorizeCaller(caller, addr common.Address) error {
	l.lock()
	defer l.unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	delete(l.authorized, addr)
	return nil
}

func (l *Ledger) IsAuthorizedCaller(addr common.Address) bool {
	l.lock()
	defer l.unlock()
	_, ok := l.authorized[addr]
	return ok
}

func (l *Ledger) requireOperational() error {
	if !l.operational {
		return ErrNotOperational
	}
	return nil
}

func (l *Ledger) requireOwner(caller common.Address) error {
	if err := l.requireOperational(); err != nil {
		return err
	}
	if caller != l.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, ErrUnauthorized)
	}
	return nil
}
