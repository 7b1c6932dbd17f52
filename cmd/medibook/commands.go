package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"medibook/internal/client"
	"medibook/internal/models"
	"medibook/internal/views"
)

type app struct {
	out         io.Writer
	server      string
	sessionFile string

	session      *client.Session
	appointments *client.AppointmentService
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:          "medibook",
		Short:        "Book and review medical appointments",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	root.SetOut(out)

	server := os.Getenv("MEDIBOOK_SERVER")
	if server == "" {
		server = "http://localhost:3000"
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "API base URL")
	root.PersistentFlags().StringVar(&a.sessionFile, "session", "", "session file (default: user config dir)")

	root.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.doctorsCmd(),
		a.appointmentsCmd(),
		a.bookCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) open() error {
	var store client.Store
	if a.sessionFile != "" {
		store = client.NewFileStore(a.sessionFile)
	} else {
		fs, err := client.DefaultFileStore()
		if err != nil {
			return err
		}
		store = fs
	}
	a.session = client.NewSession(a.server, store)
	a.appointments = client.NewAppointmentService(a.session)
	return nil
}

func (a *app) signupCmd() *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Signup(cmd.Context(), username, password, models.Role(role)); err != nil {
				return err
			}
			return a.printIdentity()
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "account role (user or doctor)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			return a.printIdentity()
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printIdentity()
		},
	}
}

func (a *app) printIdentity() error {
	user := a.session.CurrentUser()
	if user == nil {
		_, err := fmt.Fprintln(a.out, "Not signed in.")
		return err
	}
	_, err := fmt.Fprintf(a.out, "%s (%s) id=%s\n", user.Username, user.Role, user.ID)
	return err
}

func (a *app) doctorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctors",
		Short: "List doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, err := a.session.API().ListDoctors(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSPECIALITY\tFEES\tAVAILABILITY\tRATING")
			for _, d := range doctors {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%.1f\n", d.ID, d.Name, d.Speciality, d.Fees, d.Availability, d.Rating)
			}
			return tw.Flush()
		},
	}
}

func (a *app) appointmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"ls"},
		Short:   "List your appointments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			view := views.NewAppointmentsView(cmd.Context(), a.session, a.appointments)
			defer view.Close()
			if err := view.Render(a.out); err != nil {
				return err
			}
			if view.State() == views.StateError {
				return view.Err()
			}
			return nil
		},
	}
}

func (a *app) bookCmd() *cobra.Command {
	var booking client.Booking
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment with a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			view := views.NewAppointmentsView(cmd.Context(), a.session, a.appointments)
			defer view.Close()

			id, err := a.appointments.Book(cmd.Context(), booking)
			if errors.Is(err, client.ErrNotAuthenticated) {
				return errors.New("please log in to book an appointment")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Appointment %s booked.\n\n", id)
			return view.Render(a.out)
		},
	}
	cmd.Flags().StringVar(&booking.DoctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&booking.Date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&booking.Time, "time", "", "time (HH:MM)")
	cmd.MarkFlagRequired("doctor")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("time")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream new bookings as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.session.Watch(cmd.Context(), func(e client.BookingEvent) {
				fmt.Fprintf(a.out, "%s %s %s %s %s\n", e.Type, e.Appointment.Date, e.Appointment.Time, e.Appointment.DoctorID, e.Appointment.Status)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
