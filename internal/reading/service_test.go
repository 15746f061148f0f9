package reading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeRepository is an in-memory Repository with injectable failures.
type fakeRepository struct {
	mu        sync.Mutex
	readings  []Reading
	nextID    int
	insertErr error
	readErr   error
	listExtra int // returns this many more than asked, to exercise truncation
	deadline  bool
}

func (f *fakeRepository) Insert(ctx context.Context, r *Reading) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		f.deadline = true
	}
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.nextID++
	r.ID = ID(strconv.Itoa(f.nextID))
	f.readings = append(f.readings, *r)
	return r.ID, nil
}

func (f *fakeRepository) GetByID(_ context.Context, id ID) (*Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, r := range f.readings {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) GetLatest(_ context.Context) (*Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.readings) == 0 {
		return nil, ErrNotFound
	}
	latest := f.readings[0]
	for _, r := range f.readings[1:] {
		if r.Date >= latest.Date {
			latest = r
		}
	}
	return &latest, nil
}

func (f *fakeRepository) ListRecent(_ context.Context, limit int) ([]Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]Reading, 0, limit+f.listExtra)
	for i := 0; i < limit+f.listExtra; i++ {
		out = append(out, Reading{ID: ID(strconv.Itoa(i)), Date: "d"})
	}
	return out, nil
}

// recordingBroadcaster captures published readings.
type recordingBroadcaster struct {
	mu        sync.Mutex
	published []Reading
}

func (b *recordingBroadcaster) Publish(r Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, r)
}

func (b *recordingBroadcaster) all() []Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Reading(nil), b.published...)
}

// recordingMirror captures mirrored readings and can fail.
type recordingMirror struct {
	mu       sync.Mutex
	mirrored []Reading
	err      error
}

func (m *recordingMirror) MirrorReading(_ context.Context, r Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrored = append(m.mirrored, r)
	return m.err
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mirrored)
}

// countingLogger counts warnings and errors.
type countingLogger struct {
	mu     sync.Mutex
	warns  int
	errors int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  {}
func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}
func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func validReading() Reading {
	return Reading{SensorID: 3, Value: 21.5, Date: "2024-01-01T00:00:00"}
}

func TestService_Create(t *testing.T) {
	repo := &fakeRepository{}
	bc := &recordingBroadcaster{}
	svc := NewService(repo, bc)

	in := validReading()
	in.ID = "client-supplied"

	created, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "1" {
		t.Errorf("Create().ID = %q, want store-assigned 1", created.ID)
	}
	if !repo.deadline {
		t.Error("Insert() context should carry the operation timeout")
	}

	published := bc.all()
	if len(published) != 1 {
		t.Fatalf("published %d readings, want 1", len(published))
	}
	if published[0] != *created {
		t.Errorf("published %+v, want %+v", published[0], *created)
	}

	got, err := svc.Get(context.Background(), ByID(created.ID))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got != *created {
		t.Errorf("Get() = %+v, want %+v", got, created)
	}
}

func TestService_Create_InvalidIsNotStoredOrBroadcast(t *testing.T) {
	repo := &fakeRepository{}
	bc := &recordingBroadcaster{}
	svc := NewService(repo, bc)

	bad := validReading()
	bad.Date = ""

	if _, err := svc.Create(context.Background(), bad); !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("Create() error = %v, want ErrInvalidReading", err)
	}
	if len(repo.readings) != 0 {
		t.Errorf("invalid reading was stored")
	}
	if len(bc.all()) != 0 {
		t.Errorf("invalid reading was broadcast")
	}
}

func TestService_Create_StoreFailureIsNotBroadcast(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"write failure", fmt.Errorf("%w: disk full", ErrWriteFailure)},
		{"unavailable", fmt.Errorf("%w: connection refused", ErrStoreUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepository{insertErr: tt.err}
			bc := &recordingBroadcaster{}
			mirror := &recordingMirror{}
			log := &countingLogger{}
			svc := NewService(repo, bc)
			svc.AddMirror(mirror)
			svc.SetLogger(log)

			_, err := svc.Create(context.Background(), validReading())
			if !errors.Is(err, tt.err) {
				t.Fatalf("Create() error = %v, want %v", err, tt.err)
			}
			svc.Wait()

			if len(bc.all()) != 0 {
				t.Error("failed write was broadcast")
			}
			if mirror.count() != 0 {
				t.Error("failed write was mirrored")
			}
			if log.errors != 1 {
				t.Errorf("logged %d errors, want 1", log.errors)
			}
		})
	}
}

func TestService_Create_Mirrors(t *testing.T) {
	repo := &fakeRepository{}
	ok := &recordingMirror{}
	failing := &recordingMirror{err: errors.New("broker down")}
	log := &countingLogger{}

	svc := NewService(repo, nil)
	svc.SetLogger(log)
	svc.AddMirror(ok)
	svc.AddMirror(failing)

	if _, err := svc.Create(context.Background(), validReading()); err != nil {
		t.Fatalf("Create() error = %v, mirror failures must not fail create", err)
	}
	svc.Wait()

	if ok.count() != 1 || failing.count() != 1 {
		t.Errorf("mirror counts = %d, %d; want 1, 1", ok.count(), failing.count())
	}
	if log.warns != 1 {
		t.Errorf("logged %d warnings, want 1", log.warns)
	}
}

func TestService_Get(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, Latest()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(Latest) on empty store error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, ByID("1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(ByID) on empty store error = %v, want ErrNotFound", err)
	}

	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-01"} {
		r := validReading()
		r.Date = d
		if _, err := svc.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	latest, err := svc.Get(ctx, ParseLookup("-1"))
	if err != nil {
		t.Fatalf("Get(-1) error = %v", err)
	}
	if latest.Date != "2024-01-03" {
		t.Errorf("Get(-1).Date = %q, want 2024-01-03", latest.Date)
	}
}

func TestService_Get_StoreUnavailable(t *testing.T) {
	repo := &fakeRepository{readErr: fmt.Errorf("%w: timeout", ErrStoreUnavailable)}
	svc := NewService(repo, nil)

	if _, err := svc.Get(context.Background(), Latest()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Get() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.ListRecent(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ListRecent() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestService_ListRecent_NeverExceedsLimit(t *testing.T) {
	repo := &fakeRepository{listExtra: 5}
	svc := NewService(repo, nil)

	got, err := svc.ListRecent(context.Background())
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(got) != DefaultListLimit {
		t.Errorf("ListRecent() returned %d, want %d", len(got), DefaultListLimit)
	}
}

func TestService_SetOperationTimeout(t *testing.T) {
	svc := NewService(&fakeRepository{}, nil)

	svc.SetOperationTimeout(2 * time.Second)
	if svc.opTimeout != 2*time.Second {
		t.Errorf("opTimeout = %v, want 2s", svc.opTimeout)
	}

	svc.SetOperationTimeout(0)
	if svc.opTimeout != defaultOperationTimeout {
		t.Errorf("opTimeout = %v, want default", svc.opTimeout)
	}
}

func TestService_WithSQLiteRepository(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	bc := &recordingBroadcaster{}
	svc := NewService(repo, bc)
	ctx := context.Background()

	created, err := svc.Create(ctx, validReading())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(ctx, ByID(created.ID))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SensorID != 3 || got.Value != 21.5 || got.Date != "2024-01-01T00:00:00" {
		t.Errorf("Get() = %+v, want the created fields", got)
	}

	recent, err := svc.ListRecent(ctx)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	latest, err := svc.Get(ctx, Latest())
	if err != nil {
		t.Fatalf("Get(Latest) error = %v", err)
	}
	if len(recent) != 1 || recent[0] != *latest {
		t.Errorf("ListRecent()[0] = %+v, want %+v", recent, latest)
	}
	if len(bc.all()) != 1 || bc.all()[0] != *created {
		t.Errorf("broadcast = %+v, want exactly the created reading", bc.all())
	}
}
