package schedule

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"clinician-console/internal/api"
	"clinician-console/internal/cache"
	"clinician-console/internal/credential"
	"clinician-console/internal/fakebackend"
	"clinician-console/internal/model"
	"clinician-console/internal/notice"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:15", 555, true},
		{"9:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"1200", 0, false},
		{"09:00:00", 540, true},
		{"17:30:59", 1050, true},
		{"09:00:60", 0, false},
		{"09:00:0", 0, false},
		{"09:00:00:00", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Minutes(tc.in)
			if (err == nil) != tc.ok || got != tc.want {
				t.Errorf("got %d, %v", got, err)
			}
		})
	}
}

func TestTimeOptions(t *testing.T) {
	opts := TimeOptions(Granularity)
	if len(opts) != 96 || opts[0] != "00:00" || opts[1] != "00:15" || opts[95] != "23:45" {
		t.Errorf("unexpected grid: %d entries, %q..%q", len(opts), opts[0], opts[len(opts)-1])
	}
}

func TestMerge(t *testing.T) {
	hours := []model.WorkingHour{
		{Day: "MONDAY", IsAvailable: true, StartTime: "08:00", EndTime: "12:00"},
		{Day: "Wednesday", IsAvailable: true},
		{Day: "funday", IsAvailable: true, StartTime: "01:00", EndTime: "02:00"},
		{Day: "monday", IsAvailable: false, StartTime: "10:00", EndTime: "11:00"},
	}
	got := Merge(hours)

	want := Default()
	want[0] = model.DayAvailability{Day: model.Monday, Available: true, Start: "08:00", End: "12:00"}
	want[2] = model.DayAvailability{Day: model.Wednesday, Available: true, Start: DefaultStart, End: DefaultEnd}
	if got != want {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
	if Merge(hours) != got {
		t.Error("merge is not idempotent")
	}
	if Merge(nil) != Default() {
		t.Error("empty payload should give the default frame")
	}
}

func TestValidate(t *testing.T) {
	day := func(d model.Day, avail bool, start, end string) model.DayAvailability {
		return model.DayAvailability{Day: d, Available: avail, Start: start, End: end}
	}
	fromBackend := Merge([]model.WorkingHour{{Day: "monday", IsAvailable: true, StartTime: "09:00:00", EndTime: "17:00:00"}})
	tests := []struct {
		name string
		days []model.DayAvailability
		want string
	}{
		{"ok", []model.DayAvailability{day(model.Monday, true, "09:00", "17:00")}, ""},
		{"reversed", []model.DayAvailability{day(model.Tuesday, true, "10:00", "09:00")}, "Tuesday: end must be after start"},
		{"equal", []model.DayAvailability{day(model.Tuesday, true, "09:00", "09:00")}, "Tuesday: end must be after start"},
		{"unavailable not checked", []model.DayAvailability{day(model.Tuesday, false, "10:00", "09:00")}, ""},
		{"first violation", []model.DayAvailability{
			day(model.Monday, true, "09:00", "17:00"),
			day(model.Thursday, true, "12:00", "11:00"),
			day(model.Friday, true, "12:00", "11:00"),
		}, "Thursday: end must be after start"},
		{"seconds from backend", fromBackend[:], ""},
		{"seconds reversed", []model.DayAvailability{day(model.Monday, true, "17:00:00", "09:00:00")}, "Monday: end must be after start"},
		{"garbage", []model.DayAvailability{day(model.Sunday, true, "nine", "17:00")}, "Sunday: invalid start time"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.days)
			if tc.want == "" {
				if err != nil {
					t.Errorf("unexpected %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.want {
				t.Errorf("got %v want %q", err, tc.want)
			}
			if api.KindOf(err) != api.KindValidation {
				t.Errorf("kind %v", api.KindOf(err))
			}
		})
	}
}

type gateStub struct{ calls []bool }

func (g *gateStub) CheckCompletion(complete bool) bool {
	g.calls = append(g.calls, complete)
	return complete
}

type fixture struct {
	srv   *fakebackend.Server
	cache *cache.Cache
	gate  *gateStub
	rec   *notice.Recorder
	e     *Editor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	srv := fakebackend.New(t, model.DoctorProfile{ID: "doc-1"})
	creds, err := credential.Open(ctx, &credential.Memory{})
	if err != nil {
		t.Fatal(err)
	}
	creds.Set(ctx, fakebackend.MakeToken("doc-1"))
	c := cache.New()
	g := &gateStub{}
	rec := &notice.Recorder{}
	return &fixture{srv: srv, cache: c, gate: g, rec: rec, e: New(api.New(srv.URL, creds.TokenSource()), c, g, rec)}
}

func TestSettersTouchOneDay(t *testing.T) {
	f := setup(t)
	before := f.e.Days()

	if err := f.e.SetAvailable(model.Friday, true); err != nil {
		t.Fatal(err)
	}
	if err := f.e.SetStart(model.Friday, "10:15"); err != nil {
		t.Fatal(err)
	}
	if err := f.e.SetEnd(model.Friday, "18:45"); err != nil {
		t.Fatal(err)
	}
	after := f.e.Days()
	for i := range after {
		if after[i].Day == model.Friday {
			want := model.DayAvailability{Day: model.Friday, Available: true, Start: "10:15", End: "18:45"}
			if after[i] != want {
				t.Errorf("friday: %+v", after[i])
			}
			continue
		}
		if after[i] != before[i] {
			t.Errorf("%s changed: %+v", after[i].Day, after[i])
		}
	}

	if err := f.e.SetStart(model.Friday, "10:10"); err == nil {
		t.Error("off-grid time accepted")
	}
	if err := f.e.SetEnd(model.Friday, "18:45:30"); err == nil {
		t.Error("seconds accepted by a setter")
	}
	if err := f.e.SetAvailable("funday", true); !errors.Is(err, ErrUnknownDay) {
		t.Errorf("expected ErrUnknownDay, got %v", err)
	}
	if err := f.e.Standard(model.Sunday); err != nil {
		t.Fatal(err)
	}
	if d, _ := f.e.Day(model.Sunday); !d.Available || d.Start != "09:00" || d.End != "17:00" {
		t.Errorf("standard: %+v", d)
	}
}

func TestSaveValidationFailure(t *testing.T) {
	f := setup(t)
	f.e.SetAvailable(model.Tuesday, true)
	f.e.SetStart(model.Tuesday, "10:00")
	f.e.SetEnd(model.Tuesday, "09:00")
	before := f.e.Days()

	err := f.e.Save(context.Background())
	if err == nil || err.Error() != "Tuesday: end must be after start" {
		t.Fatalf("got %v", err)
	}
	if n := f.srv.Calls(fakebackend.WorkingHours); n != 0 {
		t.Errorf("invalid schedule sent: %d calls", n)
	}
	if f.e.Days() != before {
		t.Error("local state changed")
	}
	if got := f.rec.Titles(); len(got) != 1 || got[0] != "Validation Error" {
		t.Errorf("notices %q", got)
	}
	if len(f.gate.calls) != 0 {
		t.Error("completion checked after a failed save")
	}
}

func TestSave(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cache.Read(ctx, f.cache, cache.Profile, func(context.Context) (string, error) { return "old", nil }, true)
	f.e.SetSpecialization("Cardiology")
	f.e.Standard(model.Monday)

	if err := f.e.Save(ctx); err != nil {
		t.Fatal(err)
	}
	sent := f.srv.LastWorkingHours()
	if len(sent) != 7 {
		t.Fatalf("expected the full week, got %d entries", len(sent))
	}
	if sent[0] != (model.WorkingHour{Day: "monday", IsAvailable: true, StartTime: "09:00", EndTime: "17:00"}) {
		t.Errorf("monday: %+v", sent[0])
	}
	if sent[6].Day != "sunday" || sent[6].IsAvailable {
		t.Errorf("sunday: %+v", sent[6])
	}
	if f.cache.Fresh(cache.Profile) {
		t.Error("profile not invalidated")
	}
	if len(f.gate.calls) != 1 || !f.gate.calls[0] {
		t.Errorf("completion checks: %v", f.gate.calls)
	}
	if got := f.rec.All(); len(got) != 1 || got[0].Description != "Weekly schedule saved!" {
		t.Errorf("notices %+v", got)
	}

	// same model, same server state
	f.e.Save(ctx)
	if again := f.srv.LastWorkingHours(); len(again) != 7 || again[0] != sent[0] {
		t.Error("resubmission changed server state")
	}
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	f := setup(t)
	f.srv.Fail(fakebackend.WorkingHours, http.StatusBadGateway)
	f.e.Standard(model.Wednesday)
	before := f.e.Days()

	err := f.e.Save(context.Background())
	if api.KindOf(err) != api.KindServer {
		t.Fatalf("got %v", err)
	}
	if f.e.Days() != before {
		t.Error("edits rolled back")
	}
	all := f.rec.All()
	if len(all) != 1 || all[0].Variant != notice.Destructive || all[0].Description != "Failed to save schedule: 502: Bad Gateway" {
		t.Errorf("notices %+v", all)
	}

	f.srv.Fail(fakebackend.WorkingHours, 0)
	if err := f.e.Save(context.Background()); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestSaveSpecialization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.e.SetSpecialization("")
	if err := f.e.SaveSpecialization(ctx); err != nil {
		t.Fatalf("empty specialization rejected: %v", err)
	}
	f.e.SetSpecialization("Dermatology")
	f.e.Standard(model.Thursday)
	if err := f.e.SaveSpecialization(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.srv.Profile().Specialization; got != "Dermatology" {
		t.Errorf("server has %q", got)
	}
	if len(f.gate.calls) != 2 || f.gate.calls[0] || !f.gate.calls[1] {
		t.Errorf("completion checks: %v", f.gate.calls)
	}
	if got := f.rec.Titles(); len(got) != 2 || got[1] != "Success" {
		t.Errorf("notices %q", got)
	}
}

func TestLoad(t *testing.T) {
	f := setup(t)
	p := &model.DoctorProfile{
		Specialization: "Cardiology",
		WorkingHours:   []model.WorkingHour{{Day: "friday", IsAvailable: true, StartTime: "07:00", EndTime: "15:00"}},
	}
	f.e.Load(p)
	first := f.e.Days()
	f.e.Load(p)
	if f.e.Days() != first {
		t.Error("load is not idempotent")
	}
	if !f.e.Complete() || f.e.Specialization() != "Cardiology" {
		t.Error("loaded profile should be complete")
	}
	f.e.Load(nil)
	if f.e.Days() != first {
		t.Error("nil profile changed state")
	}
}

func TestSaveUneditedBackendSchedule(t *testing.T) {
	f := setup(t)
	f.e.Load(&model.DoctorProfile{
		Specialization: "Cardiology",
		WorkingHours:   []model.WorkingHour{{Day: "monday", IsAvailable: true, StartTime: "09:00:00", EndTime: "17:00:00"}},
	})

	if err := f.e.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if n := f.srv.Calls(fakebackend.WorkingHours); n != 1 {
		t.Errorf("expected one PUT, got %d", n)
	}
}
