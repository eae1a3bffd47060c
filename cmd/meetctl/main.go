// Command meetctl is a terminal client for the meeting scheduler API. The
// login is kept in a session file so later invocations are authenticated.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/client"
	"meeting-scheduler-api/internal/session"
)

const defaultEndpoint = "http://localhost:4000/graphql"

type app struct {
	api  *client.Client
	sess *session.Session
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"register":       {"register -name NAME -email EMAIL -password PASSWORD", register},
	"login":          {"login -email EMAIL -password PASSWORD", login},
	"logout":         {"logout", logout},
	"whoami":         {"whoami", whoami},
	"profile":        {"profile [-name N] [-address A] [-dob YYYY-MM-DD] [-image URL]", profile},
	"users":          {"users", users},
	"user":           {"user ID", user},
	"meetings":       {"meetings", meetings},
	"meeting":        {"meeting ID", meeting},
	"create-meeting": {"create-meeting -title T -start RFC3339 -end RFC3339 [-description D] [-attendees ID,ID]", createMeeting},
	"delete-meeting": {"delete-meeting ID", deleteMeeting},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, PartsExclude: []string{zerolog.TimestampFieldName}})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := flag.NewFlagSet("meetctl", flag.ExitOnError)
	endpoint := fs.String("endpoint", envOr("MEETCTL_ENDPOINT", defaultEndpoint), "GraphQL endpoint")
	sessionPath := fs.String("session", envOr("MEETCTL_SESSION", defaultSessionPath()), "session file")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	debug := fs.Bool("debug", false, "verbose logging")
	fs.Usage = usage(fs)
	_ = fs.Parse(os.Args[1:])

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		log.Error().Str("command", fs.Arg(0)).Msg("unknown command")
		fs.Usage()
		os.Exit(2)
	}

	sess, err := session.Load(*sessionPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load session")
	}
	a := &app{api: client.New(*endpoint, sess), sess: sess}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		// the server no longer accepts our token
		if client.CodeOf(err) == "UNAUTHENTICATED" && sess.IsAuthenticated() {
			_ = sess.Logout()
			log.Warn().Msg("session expired, please log in again")
		}
		report(log.Logger, err)
		os.Exit(1)
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintln(out, "usage: meetctl [flags] COMMAND [args]")
		fmt.Fprintln(out, "\ncommands:")
		names := []string{"register", "login", "logout", "whoami", "profile", "users", "user", "meetings", "meeting", "create-meeting", "delete-meeting"}
		for _, n := range names {
			fmt.Fprintf(out, "  %s\n", commands[n].usage)
		}
		fmt.Fprintln(out, "\nflags:")
		fs.PrintDefaults()
	}
}

// report logs each GraphQL error with its code and field details.
func report(l zerolog.Logger, err error) {
	var re *client.ResponseError
	if !errors.As(err, &re) {
		l.Error().Err(err).Msg("request failed")
		return
	}
	if len(re.Errors) == 0 {
		l.Error().Int("status", re.StatusCode).Msg("request failed")
		return
	}
	for _, ge := range re.Errors {
		ev := l.Error().Str("code", ge.Code())
		if d := details(ge); d != nil {
			ev = ev.Dict("details", d)
		}
		ev.Msg(ge.Message)
	}
}

// details reads extensions.details, a list of {field, message} objects.
func details(ge client.GraphQLError) *zerolog.Event {
	list, ok := ge.Extensions["details"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	d := zerolog.Dict()
	for _, item := range list {
		fe, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := fe["field"].(string)
		msg, _ := fe["message"].(string)
		if field == "" {
			field = "input"
		}
		d = d.Str(field, msg)
	}
	return d
}

func register(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	u, err := a.api.Register(ctx, client.RegisterInput{Name: *name, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	log.Info().Str("id", u.ID).Msg("registered, now run meetctl login")
	return nil
}

func login(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	p, err := a.api.Login(ctx, client.LoginInput{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	if err := a.sess.Login(p.Token, p.User); err != nil {
		return err
	}
	log.Info().Str("user", p.User.Email).Str("session", a.sess.Path()).Msg("logged in")
	return nil
}

func logout(_ context.Context, a *app, _ []string) error {
	if err := a.sess.Logout(); err != nil {
		return err
	}
	a.api.Cache().Reset()
	log.Info().Msg("logged out")
	return nil
}

func whoami(ctx context.Context, a *app, _ []string) error {
	if _, err := a.sess.RequireUser(); err != nil {
		return err
	}
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(u)
}

func profile(ctx context.Context, a *app, args []string) error {
	if _, err := a.sess.RequireUser(); err != nil {
		return err
	}
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	var in client.ProfileInput
	fs.Func("name", "new display name", setString(&in.Name))
	fs.Func("address", "new address", setString(&in.Address))
	fs.Func("dob", "date of birth, YYYY-MM-DD; empty clears", setString(&in.DOB))
	fs.Func("image", "image URL; empty clears", setString(&in.ImageURL))
	_ = fs.Parse(args)

	if in == (client.ProfileInput{}) {
		u, err := a.api.MyProfile(ctx)
		if err != nil {
			return err
		}
		return printJSON(u)
	}
	u, err := a.api.UpdateMyProfile(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(u)
}

func users(ctx context.Context, a *app, _ []string) error {
	us, err := a.api.Users(ctx)
	if err != nil {
		return err
	}
	return printJSON(us)
}

func user(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	u, err := a.api.User(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", id)
	}
	return printJSON(u)
}

func meetings(ctx context.Context, a *app, _ []string) error {
	ms, err := a.api.Meetings(ctx)
	if err != nil {
		return err
	}
	return printJSON(ms)
}

func meeting(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	m, err := a.api.Meeting(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("meeting %s not found", id)
	}
	return printJSON(m)
}

func createMeeting(ctx context.Context, a *app, args []string) error {
	if _, err := a.sess.RequireUser(); err != nil {
		return err
	}
	in, err := meetingInput(args)
	if err != nil {
		return err
	}
	m, err := a.api.CreateMeeting(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(m)
}

// meetingInput parses create-meeting flags. -title, -start and -end are required.
func meetingInput(args []string) (client.MeetingInput, error) {
	fs := flag.NewFlagSet("create-meeting", flag.ContinueOnError)
	var in client.MeetingInput
	fs.StringVar(&in.Title, "title", "", "meeting title")
	fs.Func("description", "optional description", setString(&in.Description))
	fs.Func("start", "start time, RFC3339", setTime(&in.StartTime))
	fs.Func("end", "end time, RFC3339", setTime(&in.EndTime))
	attendees := fs.String("attendees", "", "comma separated user ids")
	if err := fs.Parse(args); err != nil {
		return in, err
	}

	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "-title")
	}
	if in.StartTime.IsZero() {
		missing = append(missing, "-start")
	}
	if in.EndTime.IsZero() {
		missing = append(missing, "-end")
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("create-meeting: missing %s", strings.Join(missing, ", "))
	}

	for _, id := range strings.Split(*attendees, ",") {
		if id = strings.TrimSpace(id); id != "" {
			in.AttendeeIDs = append(in.AttendeeIDs, id)
		}
	}
	return in, nil
}

func deleteMeeting(ctx context.Context, a *app, args []string) error {
	if _, err := a.sess.RequireUser(); err != nil {
		return err
	}
	id, err := oneID(args)
	if err != nil {
		return err
	}
	ok, err := a.api.DeleteMeeting(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("meeting %s not found", id)
	}
	log.Info().Str("id", id).Msg("meeting deleted")
	return nil
}

func oneID(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one id")
	}
	return strings.TrimSpace(args[0]), nil
}

func setString(dst **string) func(string) error {
	return func(v string) error {
		*dst = &v
		return nil
	}
}

func setTime(dst *time.Time) func(string) error {
	return func(v string) error {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		*dst = t
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "meetctl", "session.json")
}
