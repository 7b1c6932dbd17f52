// Package views holds presentation state for client front ends.
package views

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"medibook/internal/models"
)

// ErrLoadMessage is shown when appointments cannot be fetched.
const ErrLoadMessage = "Failed to load appointments. Please try again later."

// State is the display state of a view.
type State int

const (
	StateLoginRequired State = iota
	StateLoading
	StateError
	StateEmpty
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoginRequired:
		return "login required"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IdentitySource is the signed-in identity. *client.Session satisfies it.
type IdentitySource interface {
	CurrentUser() *models.Identity
	OnChange(fn func(*models.Identity)) (unsubscribe func())
}

// AppointmentSource fetches appointments and signals bookings.
// *client.AppointmentService satisfies it.
type AppointmentSource interface {
	ListMine(ctx context.Context) ([]models.Appointment, error)
	Subscribe(fn func(models.ID)) (unsubscribe func())
}

// AppointmentsView is the signed-in user's appointment list. It refetches
// when the identity changes and after a booking completes.
type AppointmentsView struct {
	ctx          context.Context
	identity     IdentitySource
	appointments AppointmentSource

	mu    sync.Mutex
	state State
	items []models.Appointment
	err   error
	gen   uint64

	unsubscribe []func()
}

// NewAppointmentsView builds the view and performs the first fetch. ctx
// bounds every fetch the view makes, including those triggered later.
func NewAppointmentsView(ctx context.Context, identity IdentitySource, appointments AppointmentSource) *AppointmentsView {
	v := &AppointmentsView{ctx: ctx, identity: identity, appointments: appointments}
	v.unsubscribe = append(v.unsubscribe,
		identity.OnChange(func(*models.Identity) { v.Refresh() }),
		appointments.Subscribe(func(models.ID) { v.Refresh() }),
	)
	v.Refresh()
	return v
}

// Close stops reacting to identity changes and bookings.
func (v *AppointmentsView) Close() {
	for _, fn := range v.unsubscribe {
		fn()
	}
}

// Refresh refetches the list. A fetch that is overtaken by a newer one is
// discarded.
func (v *AppointmentsView) Refresh() {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.identity.CurrentUser() == nil {
		v.state, v.items, v.err = StateLoginRequired, nil, nil
		v.mu.Unlock()
		return
	}
	v.state, v.err = StateLoading, nil
	v.mu.Unlock()

	items, err := v.appointments.ListMine(v.ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return
	}
	switch {
	case err != nil:
		v.state, v.items, v.err = StateError, nil, err
	case len(items) == 0:
		v.state, v.items = StateEmpty, nil
	default:
		SortByDateDesc(items)
		v.state, v.items = StateLoaded, items
	}
}

// State returns the current display state.
func (v *AppointmentsView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the error of the last failed fetch.
func (v *AppointmentsView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Appointments returns the loaded appointments, newest first.
func (v *AppointmentsView) Appointments() []models.Appointment {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Appointment(nil), v.items...)
}

// Render writes the view as text.
func (v *AppointmentsView) Render(w io.Writer) error {
	v.mu.Lock()
	state := v.state
	items := append([]models.Appointment(nil), v.items...)
	v.mu.Unlock()

	switch state {
	case StateLoginRequired:
		_, err := fmt.Fprintln(w, "Please log in to view your appointments")
		return err
	case StateLoading:
		_, err := fmt.Fprintln(w, "Loading appointments...")
		return err
	case StateError:
		_, err := fmt.Fprintf(w, "%s\nRun the command again to retry.\n", ErrLoadMessage)
		return err
	case StateEmpty:
		_, err := fmt.Fprintln(w, "No appointments found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tDOCTOR\tSPECIALITY\tSTATUS")
	for _, a := range items {
		doctor, speciality := "Unknown Doctor", "Not available"
		if a.Doctor != nil {
			if a.Doctor.Name != "" {
				doctor = a.Doctor.Name
			}
			if a.Doctor.Speciality != "" {
				speciality = a.Doctor.Speciality
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Date, a.Time, doctor, speciality, a.Status)
	}
	return tw.Flush()
}

// SortByDateDesc orders appointments newest first, breaking date ties by
// time. Dates that are not ISO-8601 fall back to string order.
func SortByDateDesc(items []models.Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := compareDates(items[i].Date, items[j].Date); c != 0 {
			return c > 0
		}
		return items[i].Time > items[j].Time
	})
}

func compareDates(a, b string) int {
	ta, errA := time.Parse(time.DateOnly, a)
	tb, errB := time.Parse(time.DateOnly, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
