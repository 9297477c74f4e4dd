package doser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evancroft666/aquadoser/controller/drivers"
)

var errFake = errors.New("fake hardware fault")

// fakeMotor records pump commands instead of sleeping on hardware.
type fakeMotor struct {
	mu     sync.Mutex
	runs   []motorRun
	active map[int]bool
	runErr error
}

type motorRun struct {
	channel  int
	duration time.Duration
}

func newFakeMotor() *fakeMotor {
	return &fakeMotor{active: map[int]bool{}}
}

func (f *fakeMotor) Run(channel int, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, motorRun{channel: channel, duration: duration})
	return f.runErr
}

func (f *fakeMotor) Start(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[channel] = true
	return nil
}

func (f *fakeMotor) Stop(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[channel] = false
	return nil
}

func (f *fakeMotor) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func (f *fakeMotor) lastRun() motorRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[len(f.runs)-1]
}

// fakeClock is a settable clock. The reference Monday is 2024-01-01.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

var testMonday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFakeClock() *fakeClock {
	return &fakeClock{now: testMonday}
}

func (f *fakeClock) Now() drivers.Instant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return drivers.InstantFromTime(f.now)
}

// set moves the clock to dayOffset days after the reference Monday, at the
// given wall time.
func (f *fakeClock) set(dayOffset, hour, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = testMonday.AddDate(0, 0, dayOffset).Add(
		time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// fakeIndicator records LED brackets.
type fakeIndicator struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeIndicator) SetActive(channel int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("active:%d", channel))
}

func (f *fakeIndicator) RestorePrevious() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "restore")
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	seq     uint64
}

func newMemStore() *memStore {
	return &memStore{buckets: map[string]map[string][]byte{}}
}

func (m *memStore) CreateBucket(bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (m *memStore) Get(bucket, id string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	data, ok := b[id]
	if !ok {
		return fmt.Errorf("record %s not found in %s", id, bucket)
	}
	return json.Unmarshal(data, v)
}

func (m *memStore) Insert(bucket, id string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b[id] = data
	return nil
}

func (m *memStore) Update(bucket, id string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	if _, ok := b[id]; !ok {
		return fmt.Errorf("record %s not found in %s", id, bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b[id] = data
	return nil
}

func (m *memStore) Create(bucket string, fn func(id string) interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	m.seq++
	id := fmt.Sprintf("%012d", m.seq)
	data, err := json.Marshal(fn(id))
	if err != nil {
		return err
	}
	b[id] = data
	return nil
}

func (m *memStore) Delete(bucket, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	delete(b, id)
	return nil
}

func (m *memStore) List(bucket string, fn func(id string, v []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	for id, v := range b {
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }

// captureNotifier records published topics.
type captureNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *captureNotifier) Publish(topic string, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
}

type testRig struct {
	c     *Controller
	motor *fakeMotor
	clock *fakeClock
	led   *fakeIndicator
}

func newTestRig() *testRig {
	motor := newFakeMotor()
	clock := newFakeClock()
	led := &fakeIndicator{}
	c := New(Deps{
		Store: newMemStore(),
		Motor: motor,
		LED:   led,
		Clock: clock,
	}, 30*time.Second)
	if err := c.Setup(); err != nil {
		panic(err)
	}
	return &testRig{c: c, motor: motor, clock: clock, led: led}
}
