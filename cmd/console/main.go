package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"clinician-console/internal/app"
	"clinician-console/internal/appointments"
	"clinician-console/internal/config"
	"clinician-console/internal/credential"
	"clinician-console/internal/model"
	"clinician-console/internal/notice"
	"clinician-console/internal/onboarding"
	"clinician-console/internal/session"
)

const usage = `usage: console <command>

  login                          sign in through the backend and wait for the callback
  token <jwt>                    adopt a token obtained elsewhere
  logout
  status
  appointments
  cancel <id>
  schedule                       show the weekly schedule
  schedule set <day> on [start end]
  schedule set <day> off
  schedule standard <day>        09:00-17:00
  specialization <text>
  calendar                       print the calendar connect URL`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	con, err := app.Open(ctx, cfg, app.Deps{
		Notifier: notice.Log{},
		Navigator: onboarding.NavigatorFunc(func(r onboarding.Route) {
			log.Printf("-> %s", r)
		}),
	})
	if err != nil {
		log.Fatalf("open: %v", err)
	}

	err = run(ctx, con, os.Args[1:])
	con.Close()
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, con *app.Console, args []string) error {
	switch args[0] {
	case "login":
		fmt.Printf("open %s in a browser\n", con.API.LoginURL())
		if err := con.Login(ctx); err != nil {
			return err
		}
		return status(ctx, con)
	case "token":
		if len(args) != 2 {
			return errors.New("token: want exactly one argument")
		}
		if err := con.SignIn(ctx, args[1]); err != nil {
			return err
		}
		return status(ctx, con)
	case "logout":
		return con.Logout(ctx)
	case "status":
		return status(ctx, con)
	case "appointments":
		return listAppointments(ctx, con)
	case "cancel":
		if len(args) != 2 {
			return errors.New("cancel: want an appointment id")
		}
		return cancel(ctx, con, args[1])
	case "schedule":
		return scheduleCmd(ctx, con, args[1:])
	case "specialization":
		if _, err := signedIn(ctx, con); err != nil {
			return err
		}
		con.Schedule.SetSpecialization(strings.Join(args[1:], " "))
		return con.Schedule.SaveSpecialization(ctx)
	case "calendar":
		fmt.Println(con.API.CalendarConnectURL())
		return nil
	}
	fmt.Fprintln(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

func status(ctx context.Context, con *app.Console) error {
	st, action := con.Refresh(ctx)
	fmt.Printf("session:  %s\n", st.Status())
	if tok, ok := con.Creds.Get(); ok {
		if c, err := credential.Inspect(tok); err == nil && !c.ExpiresAt.IsZero() {
			fmt.Printf("token:    %s, expires %s\n", c.Subject, c.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
	}
	if st.Profile != nil {
		p := st.Profile
		fmt.Printf("doctor:   %s <%s>\n", p.Name, p.Email)
		fmt.Printf("field:    %s\n", orDash(p.Specialization))
		fmt.Printf("complete: %v\n", p.Complete())
	}
	fmt.Printf("access:   %s\n", action)
	if st.Err != nil {
		return st.Err
	}
	return nil
}

// signedIn resolves the session and refuses to continue without one.
func signedIn(ctx context.Context, con *app.Console) (session.State, error) {
	st, _ := con.Refresh(ctx)
	if st.IsAuthenticated {
		return st, nil
	}
	if st.Err != nil {
		return st, st.Err
	}
	return st, errors.New("not signed in, run: console login")
}

func listAppointments(ctx context.Context, con *app.Console) error {
	if err := consoleAccess(ctx, con); err != nil {
		return err
	}
	list, _, err := con.Appointments.List(ctx)
	if err != nil {
		return err
	}
	stats, _ := con.Appointments.Stats(ctx)
	fmt.Printf("today: %d  this week: %d  total: %d\n\n", stats.Today, stats.Week, len(list))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tPATIENT\tREASON")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.DateTime.Local().Format("Jan 2, 2006 3:04 PM"), a.PatientName, a.Reason)
	}
	return w.Flush()
}

func cancel(ctx context.Context, con *app.Console, id string) error {
	if err := consoleAccess(ctx, con); err != nil {
		return err
	}
	_, err := con.Appointments.Cancel(ctx, id, appointments.ConfirmFunc(askYesNo))
	return err
}

// consoleAccess applies the onboarding gate to commands of the main console.
func consoleAccess(ctx context.Context, con *app.Console) error {
	st, action := con.Refresh(ctx)
	switch action {
	case onboarding.Grant:
		return nil
	case onboarding.RedirectSetup:
		return errors.New("profile incomplete: set a specialization and at least one available day")
	}
	if st.Err != nil {
		return st.Err
	}
	return errors.New("not signed in, run: console login")
}

func scheduleCmd(ctx context.Context, con *app.Console, args []string) error {
	if _, err := signedIn(ctx, con); err != nil {
		return err
	}
	ed := con.Schedule
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, d := range ed.Days() {
			hours := "-"
			if d.Available {
				hours = d.Start + "-" + d.End
			}
			fmt.Fprintf(w, "%s\t%s\n", d.Day.Label(), hours)
		}
		return w.Flush()
	}

	if len(args) < 2 {
		return errors.New("schedule: missing day")
	}
	day, ok := model.ParseDay(args[1])
	if !ok {
		return fmt.Errorf("schedule: unknown day %q", args[1])
	}
	switch {
	case args[0] == "standard":
		if err := ed.Standard(day); err != nil {
			return err
		}
	case args[0] == "set" && len(args) == 3 && args[2] == "off":
		if err := ed.SetAvailable(day, false); err != nil {
			return err
		}
	case args[0] == "set" && len(args) >= 3 && args[2] == "on":
		if err := ed.SetAvailable(day, true); err != nil {
			return err
		}
		if len(args) == 5 {
			if err := ed.SetStart(day, args[3]); err != nil {
				return err
			}
			if err := ed.SetEnd(day, args[4]); err != nil {
				return err
			}
		}
	default:
		return errors.New("schedule: bad arguments")
	}
	return ed.Save(ctx)
}

func askYesNo(ctx context.Context, p appointments.Prompt) (bool, error) {
	fmt.Printf("%s\n%s\n%s? [y/N] ", p.Title, p.Description, p.ConfirmText)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	ans := strings.ToLower(strings.TrimSpace(line))
	return ans == "y" || ans == "yes", nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
