package app

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"clinician-console/internal/api"
	"clinician-console/internal/cache"
	"clinician-console/internal/config"
	"clinician-console/internal/credential"
	"clinician-console/internal/fakebackend"
	"clinician-console/internal/model"
	"clinician-console/internal/notice"
	"clinician-console/internal/onboarding"
	"clinician-console/internal/session"
)

type navLog struct {
	mu     sync.Mutex
	routes []onboarding.Route
}

func (n *navLog) Navigate(r onboarding.Route) {
	n.mu.Lock()
	n.routes = append(n.routes, r)
	n.mu.Unlock()
}

func (n *navLog) has(r onboarding.Route) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, got := range n.routes {
		if got == r {
			return true
		}
	}
	return false
}

func setup(t *testing.T) (*Console, *fakebackend.Server, *notice.Recorder, *navLog) {
	t.Helper()
	srv := fakebackend.New(t, model.DoctorProfile{ID: "doc-1", Name: "Ada", Email: "ada@example.com"})
	cfg, err := config.FromLookup(func(k string) (string, bool) {
		v, ok := map[string]string{
			"BACKEND_URL":       srv.URL,
			"CREDENTIAL_STORE":  "memory",
			"REDIRECT_DELAY_MS": "5",
			"RATE_RPS":          "0",
		}[k]
		return v, ok
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := &notice.Recorder{}
	nav := &navLog{}
	con, err := Open(context.Background(), cfg, Deps{Notifier: rec, Navigator: nav, Backend: &credential.Memory{}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(con.Close)
	return con, srv, rec, nav
}

func count(titles []string, want string) int {
	n := 0
	for _, s := range titles {
		if s == want {
			n++
		}
	}
	return n
}

func TestOnboardingFlow(t *testing.T) {
	con, srv, rec, nav := setup(t)
	ctx := context.Background()

	st, action := con.Refresh(ctx)
	if st.Status() != session.Unauthenticated || action != onboarding.RedirectLanding {
		t.Fatalf("signed out: %v %v", st.Status(), action)
	}
	if srv.Calls(fakebackend.Me) != 0 {
		t.Fatal("resolved without a credential")
	}

	if err := con.SignIn(ctx, fakebackend.MakeToken("doc-1")); err != nil {
		t.Fatal(err)
	}
	st, action = con.Refresh(ctx)
	if !st.IsAuthenticated || action != onboarding.RedirectSetup {
		t.Fatalf("new doctor: %v %v", st.Status(), action)
	}
	con.Refresh(ctx)
	if n := count(rec.Titles(), "Profile Incomplete"); n != 1 {
		t.Errorf("incomplete notices: %d", n)
	}
	if !nav.has(onboarding.Setup) {
		t.Error("not sent to setup")
	}

	con.Schedule.SetSpecialization("Cardiology")
	if err := con.Schedule.SaveSpecialization(ctx); err != nil {
		t.Fatal(err)
	}
	con.Schedule.Standard(model.Monday)
	if err := con.Schedule.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if n := count(rec.Titles(), "Profile Setup Complete"); n != 1 {
		t.Errorf("completion notices: %d", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !nav.has(onboarding.Console) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !nav.has(onboarding.Console) {
		t.Error("no auto-navigation to the console")
	}

	st, action = con.Refresh(ctx)
	if action != onboarding.Grant || !st.Profile.Complete() {
		t.Errorf("after setup: %v %+v", action, st.Profile)
	}
	con.Refresh(ctx)
	if n := count(rec.Titles(), "Profile Setup Complete"); n != 1 {
		t.Errorf("completion fired again: %d", n)
	}
}

func TestUnauthorizedEndsSession(t *testing.T) {
	con, srv, _, _ := setup(t)
	ctx := context.Background()
	srv.SetAppointments([]model.Appointment{{ID: "A1", PatientName: "Bo", DateTime: time.Now()}})

	con.SignIn(ctx, fakebackend.MakeToken("doc-1"))
	con.Refresh(ctx)
	list, ok, err := con.Appointments.List(ctx)
	if err != nil || !ok || len(list) != 1 {
		t.Fatalf("list: %v %v %v", list, ok, err)
	}

	srv.Fail(fakebackend.Cancel, http.StatusUnauthorized)
	con.Appointments.Request("A1")
	if err := con.Appointments.Confirm(ctx); api.KindOf(err) != api.KindUnauthorized {
		t.Fatalf("got %v", err)
	}
	if _, ok := con.Creds.Get(); ok {
		t.Error("credential survived a 401")
	}

	before := srv.Calls(fakebackend.Me)
	st, action := con.Refresh(ctx)
	if st.IsAuthenticated || action != onboarding.RedirectLanding {
		t.Errorf("after 401: %v %v", st.Status(), action)
	}
	if srv.Calls(fakebackend.Me) != before {
		t.Error("resolved again without a credential")
	}
	if _, ok, _ := con.Appointments.List(ctx); ok {
		t.Error("appointments listed while signed out")
	}
}

func TestLogout(t *testing.T) {
	con, _, _, _ := setup(t)
	ctx := context.Background()
	con.SignIn(ctx, fakebackend.MakeToken("doc-1"))
	con.Refresh(ctx)

	if err := con.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if st := con.Session.State(); st.IsAuthenticated || st.Profile != nil {
		t.Errorf("still signed in: %+v", st)
	}
}

func TestIdentityChangeDropsAppointments(t *testing.T) {
	con, srv, _, _ := setup(t)
	ctx := context.Background()
	srv.SetAppointments([]model.Appointment{{ID: "doc1-appt", DateTime: time.Now()}})

	con.SignIn(ctx, fakebackend.MakeToken("doc-1"))
	con.Refresh(ctx)
	first, _, err := con.Appointments.List(ctx)
	if err != nil || len(first) != 1 || first[0].ID != "doc1-appt" {
		t.Fatalf("first list: %+v %v", first, err)
	}

	con.Logout(ctx)
	if _, ok, _ := con.Appointments.List(ctx); ok {
		t.Error("list served after logout")
	}

	srv.SetAppointments([]model.Appointment{{ID: "doc2-appt", DateTime: time.Now()}})
	con.SignIn(ctx, fakebackend.MakeToken("doc-2"))
	con.Refresh(ctx)
	second, _, err := con.Appointments.List(ctx)
	if err != nil || len(second) != 1 || second[0].ID != "doc2-appt" {
		t.Errorf("second list: %+v %v", second, err)
	}
	if n := srv.Calls(fakebackend.List); n != 2 {
		t.Errorf("expected a fetch per identity, got %d", n)
	}
}

func TestSwitchingTokenDropsAppointments(t *testing.T) {
	con, srv, _, _ := setup(t)
	ctx := context.Background()
	srv.SetAppointments([]model.Appointment{{ID: "A1", DateTime: time.Now()}})

	con.SignIn(ctx, fakebackend.MakeToken("doc-1"))
	con.Refresh(ctx)
	con.Appointments.List(ctx)

	// no logout in between
	con.SignIn(ctx, fakebackend.MakeToken("doc-2"))
	if _, ok := cache.Peek[[]model.Appointment](con.Cache, cache.Appointments); ok {
		t.Error("previous identity's appointments still held")
	}
}
