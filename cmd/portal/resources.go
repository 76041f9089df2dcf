package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show profile, upcoming appointments and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			d, err := c.app.Patients.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, d)
			}

			fmt.Fprintf(out, "Welcome, %s\n\n", d.Profile.Username)
			fmt.Fprintf(out, "Medical records: %d\n", d.RecordCount)
			if d.LastVisit.IsZero() {
				fmt.Fprintln(out, "Last visit: none")
			} else {
				fmt.Fprintf(out, "Last visit: %s with %s\n", d.LastVisit.Date, orDash(d.LastVisit.DoctorName))
			}

			fmt.Fprintln(out, "\nUpcoming appointments:")
			if len(d.Upcoming) == 0 {
				fmt.Fprintln(out, "  none")
				return nil
			}
			return appointmentTable(out, d.Upcoming)
		},
	}
}

func appointmentTable(w io.Writer, list []domain.Appointment) error {
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		rows = append(rows, []string{a.ID.String(), a.Date, a.Time, a.DoctorName, a.Department, string(a.Status)})
	}
	return table(w, []string{"ID", "DATE", "TIME", "DOCTOR", "DEPARTMENT", "STATUS"}, rows)
}

func (c *cli) appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "List, book and cancel appointments",
	}
	cmd.AddCommand(c.appointmentsListCmd(), c.appointmentsBookCmd(), c.appointmentsCancelCmd())
	return cmd
}

func (c *cli) appointmentsListCmd() *cobra.Command {
	var upcoming bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			list, err := c.app.Patients.ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			if upcoming {
				list = service.Upcoming(list, c.app.Patients.Now())
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No appointments.")
				return nil
			}
			return appointmentTable(out, list)
		},
	}
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "only show appointments that have not happened or been cancelled")
	return cmd
}

func (c *cli) appointmentsBookCmd() *cobra.Command {
	var n domain.NewAppointment

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			a, err := c.app.Patients.CreateAppointment(cmd.Context(), n)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, a)
			}
			fmt.Fprintf(out, "Booked %s with %s on %s at %s (%s).\n", a.ID, a.DoctorName, a.Date, a.Time, a.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&n.DoctorName, "doctor", "", "doctor's name")
	cmd.Flags().StringVar(&n.Department, "department", "", "department")
	cmd.Flags().StringVar(&n.Date, "date", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&n.Time, "time", "", "time as HH:MM")
	return cmd
}

func (c *cli) appointmentsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid appointment id %q: %w", args[0], err)
			}
			if err := c.requireSession(); err != nil {
				return err
			}

			a, err := c.app.Patients.CancelAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appointment on %s with %s is now %s.\n", a.Date, a.DoctorName, a.Status)
			return nil
		},
	}
}

func (c *cli) recordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List medical records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			list, err := c.app.Patients.ListRecords(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No medical records.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, r := range list {
				file := ""
				if r.File != nil {
					file = *r.File
				}
				rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.CreatedAt.Format(domain.DateLayout), r.Title, orDash(r.Notes), orDash(file)})
			}
			return table(out, []string{"ID", "DATE", "TITLE", "NOTES", "FILE"}, rows)
		},
	}
}

func (c *cli) prescriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "prescriptions",
		Aliases: []string{"rx"},
		Short:   "List prescriptions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			list, err := c.app.Patients.ListPrescriptions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No prescriptions.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{p.IssuedAt.Format(domain.DateLayout), p.Title, p.Content})
			}
			return table(out, []string{"ISSUED", "TITLE", "CONTENT"}, rows)
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit your profile",
	}
	cmd.AddCommand(c.profileShowCmd(), c.profileUpdateCmd(), c.profilePictureCmd())
	return cmd
}

func (c *cli) printProfile(cmd *cobra.Command, p domain.Patient) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		return writeJSON(out, p)
	}
	return table(out, []string{"FIELD", "VALUE"}, [][]string{
		{"username", p.Username},
		{"email", orDash(p.Email)},
		{"phone", orDash(p.Phone)},
		{"gender", orDash(p.Gender)},
		{"date of birth", orDash(p.DateOfBirth)},
		{"picture", orDash(p.ProfilePicture)},
	})
}

func (c *cli) profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			p, err := c.app.Patients.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			return c.printProfile(cmd, p)
		},
	}
}

func (c *cli) profileUpdateCmd() *cobra.Command {
	var upd domain.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			p, err := c.app.Patients.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return c.printProfile(cmd, p)
		},
	}
	cmd.Flags().StringVar(&upd.Username, "username", "", "new username")
	cmd.Flags().StringVar(&upd.Email, "email", "", "new email")
	cmd.Flags().StringVar(&upd.Phone, "phone", "", "new phone number")
	cmd.Flags().StringVar(&upd.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&upd.DateOfBirth, "dob", "", "date of birth as YYYY-MM-DD")
	return cmd
}

func (c *cli) profilePictureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "picture <file>",
		Short: "Upload a new profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p, err := c.app.Patients.UploadProfilePicture(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile picture updated: %s\n", p.ProfilePicture)
			return nil
		},
	}
}
