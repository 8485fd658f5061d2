package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmcleod/authlab/audit"
)

const (
	testPassword   = "s3cret"
	testTOTPSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	testDevKey     = "dev-key-123"
)

var (
	testHashOnce sync.Once
	testHash     string
)

func passwordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		testHash = string(h)
	})
	return testHash
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Anchored to the wall clock so cookie expiry in HTTP tests stays valid.
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	recs []audit.Record
}

func (r *recordingSink) Append(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) records() []audit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Record(nil), r.recs...)
}

func (r *recordingSink) last() audit.Record {
	recs := r.records()
	if len(recs) == 0 {
		return audit.Record{}
	}
	return recs[len(recs)-1]
}

func (r *recordingSink) reasons() []string {
	var out []string
	for _, rec := range r.records() {
		out = append(out, rec.Reason)
	}
	return out
}

type fixture struct {
	g     *Guard
	sink  *recordingSink
	clock *fakeClock
	dir   StaticDirectory
}

type fixtureOpts struct {
	mfa      bool
	settings func(*Settings)
	modes    Modes
	// sink and opts are appended after the recording sink.
	sink audit.Sink
	opts []Option
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	admin := Identity{Username: "admin", PasswordHash: passwordHash(t)}
	if o.mfa {
		admin.MFAEnabled = true
		admin.MFASecret = memguard.NewEnclave([]byte(testTOTPSecret))
	}
	dir := NewStaticDirectory(admin, Identity{Username: "alice", PasswordHash: passwordHash(t)})

	settings := Settings{
		WindowSeconds: 10,
		MaxAttempts:   100,
		MFAWindow:     1,
		LoginBucket:   "default",
		MFABucket:     "login_mfa",
	}
	if o.settings != nil {
		o.settings(&settings)
	}

	f := &fixture{sink: &recordingSink{}, clock: newFakeClock(), dir: dir}
	var sink audit.Sink = f.sink
	if o.sink != nil {
		sink = audit.Multi{f.sink, o.sink}
	}
	opts := append([]Option{WithClock(f.clock), WithAuditSink(sink)}, o.opts...)
	f.g = New(settings, dir, o.modes, opts...)
	return f
}

func testCaller() Caller {
	return Caller{IP: "203.0.113.7", Route: "/login"}
}
