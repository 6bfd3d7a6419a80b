package digest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "linkbot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	ref := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	cases := []struct {
		in   string
		next time.Time
	}{
		{"0 9 * * *", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{"cron:30 8 * * *", time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC)},
		{"@hourly", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{"12h", ref.Add(12 * time.Hour)},
		{"every:6h", ref.Add(6 * time.Hour)},
		{"interval:02:30", ref.Add(150 * time.Minute)},
		{"00:45", ref.Add(45 * time.Minute)},
	}
	for _, tc := range cases {
		sched, err := ParseSchedule(tc.in)
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", tc.in, err)
		}
		if got := sched.Next(ref); !got.Equal(tc.next) {
			t.Fatalf("%q next = %s, want %s", tc.in, got, tc.next)
		}
	}

	for _, bad := range []string{"", "soon", "every:-1h", "0 99 * * *", "cron:", "01:75"} {
		if _, err := ParseSchedule(bad); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", bad)
		}
	}
}

func TestApplyKeepsScheduleOnError(t *testing.T) {
	svc := New(Config{Enabled: true, Schedule: "0 9 * * *", Timezone: "UTC"}, func(context.Context, int) error { return nil }, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop(context.Background())

	before := svc.Status()
	if before.Next.IsZero() || before.Next.Hour() != 9 {
		t.Fatalf("next = %v", before.Next)
	}
	if err := svc.Apply(Config{Enabled: true, Schedule: "whenever"}); err == nil {
		t.Fatalf("invalid schedule accepted")
	}
	if err := svc.Apply(Config{Enabled: true, Schedule: "0 9 * * *", Timezone: "Mars/Olympus"}); err == nil {
		t.Fatalf("invalid timezone accepted")
	}
	if got := svc.Status(); got.Schedule != "0 9 * * *" || !got.Next.Equal(before.Next) {
		t.Fatalf("schedule changed after rejected apply: %+v", got)
	}

	if err := svc.Apply(Config{Enabled: true, Schedule: "0 9 * * *", Timezone: "Asia/Tokyo"}); err != nil {
		t.Fatalf("Apply tz: %v", err)
	}
	st := svc.Status()
	if st.Timezone != "Asia/Tokyo" || st.Next.In(time.UTC).Hour() != 0 {
		t.Fatalf("tz status = %+v", st)
	}

	if err := svc.Apply(Config{Enabled: false, Timezone: "Asia/Tokyo"}); err != nil {
		t.Fatalf("Apply disabled: %v", err)
	}
	if st := svc.Status(); st.Enabled || !st.Next.IsZero() {
		t.Fatalf("disabled digest still scheduled: %+v", st)
	}
}

func TestScheduledRun(t *testing.T) {
	var runs atomic.Int32
	var gotLimit atomic.Int32
	svc := New(Config{Enabled: true, Schedule: "every:1s", Limit: 7}, func(_ context.Context, limit int) error {
		gotLimit.Store(int32(limit))
		runs.Add(1)
		return nil
	}, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatalf("digest never ran")
	}
	if gotLimit.Load() != 7 {
		t.Fatalf("limit = %d", gotLimit.Load())
	}
}

func TestRunNowRecordsError(t *testing.T) {
	boom := errors.New("telegram down")
	svc := New(Config{}, func(context.Context, int) error { return boom }, logx.Nop())
	if err := svc.RunNow(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RunNow = %v", err)
	}
	st := svc.Status()
	if st.LastErr != "telegram down" || st.LastRun.IsZero() {
		t.Fatalf("status = %+v", st)
	}
}
